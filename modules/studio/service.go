// Package studio exposes the workflow engine over HTTP: session lifecycle,
// the editing surface, the logo library and the history browser.
package studio

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/chat"
	"media-studio-server/modules/library"
	"media-studio-server/modules/workflow"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager - owns the live sessions and the shared services they use
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*workflow.Controller

	library *library.Store
	render  *assetreq.Client
	bridge  *chat.Bridge
	log     *zap.SugaredLogger
}

func NewManager(lib *library.Store, render *assetreq.Client, bridge *chat.Bridge, log *zap.SugaredLogger) *Manager {
	return &Manager{
		sessions: make(map[string]*workflow.Controller),
		library:  lib,
		render:   render,
		bridge:   bridge,
		log:      log,
	}
}

// CreateSession - start a new workflow session on the upload screen
func (m *Manager) CreateSession() *workflow.Controller {
	id := uuid.New().String()
	ctrl := workflow.NewController(id, m.library, m.render, m.bridge, m.log)

	m.mu.Lock()
	m.sessions[id] = ctrl
	m.mu.Unlock()

	m.log.Infof("✨ Session created: %s", id)
	return ctrl
}

// GetSession - look up a live session by id
func (m *Manager) GetSession(id string) (*workflow.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// CloseSession - drop a session. Library contents survive; only the
// transient workflow state goes away.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.log.Infof("🗑️  Session closed: %s", id)
	return nil
}

// Library - the shared logo and history store
func (m *Manager) Library() *library.Store {
	return m.library
}
