// Package library owns the durable collections of the studio: uploaded
// logos and generation history. Every mutation re-persists the affected
// collection in the same step, so the flat store never sees partial writes.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-studio-server/modules/common/imagex"
	"media-studio-server/modules/common/kv"
)

// Flat-store keys
const (
	logosKey   = "media_studio_logos"
	historyKey = "media_studio_history"
)

// ErrLogoNotFound - lookup by id failed
var ErrLogoNotFound = errors.New("logo not found")

// ErrHistoryNotFound - lookup by id failed
var ErrHistoryNotFound = errors.New("history item not found")

// Store - persistent collection manager for logos and history
type Store struct {
	kv  kv.Store
	log *zap.SugaredLogger

	mu         sync.Mutex
	logos      []*Logo
	history    []*HistoryItem
	selected   string // id of the active logo, "" when none
	lastLogoID int64
}

func NewStore(store kv.Store, log *zap.SugaredLogger) *Store {
	return &Store{kv: store, log: log}
}

// Load - read both collections from the flat store. Missing keys and
// malformed payloads fall back to empty collections rather than failing.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logos = nil
	if data, err := s.kv.Get(ctx, logosKey); err == nil {
		var persisted []persistedLogo
		if err := json.Unmarshal(data, &persisted); err != nil {
			s.log.Warnf("⚠️  Malformed logo collection, starting empty: %v", err)
		} else {
			for _, p := range persisted {
				s.logos = append(s.logos, &Logo{ID: p.ID, Name: p.Name, Preview: p.Preview})
			}
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		s.log.Warnf("⚠️  Failed to read logo collection: %v", err)
	}

	s.history = nil
	if data, err := s.kv.Get(ctx, historyKey); err == nil {
		var items []*HistoryItem
		if err := json.Unmarshal(data, &items); err != nil {
			s.log.Warnf("⚠️  Malformed history collection, starting empty: %v", err)
		} else {
			s.history = items
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		s.log.Warnf("⚠️  Failed to read history collection: %v", err)
	}

	s.log.Infof("📚 Library loaded: %d logos, %d history items", len(s.logos), len(s.history))
}

// AddLogo - decode the binary into an inline preview, assign a fresh id,
// persist the collection and make the new logo the active selection.
func (s *Store) AddLogo(ctx context.Context, binary []byte, name string) (*Logo, error) {
	if len(binary) == 0 {
		return nil, fmt.Errorf("logo binary is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Time-based token; bump on collision so ids stay unique within a
	// single millisecond burst.
	id := time.Now().UnixMilli()
	if id <= s.lastLogoID {
		id = s.lastLogoID + 1
	}
	s.lastLogoID = id

	logo := &Logo{
		ID:         fmt.Sprintf("logo_%d", id),
		Name:       name,
		Preview:    imagex.EncodeDataURL(binary),
		SourceBlob: binary,
	}
	s.logos = append(s.logos, logo)
	s.selected = logo.ID

	if err := s.persistLogos(ctx); err != nil {
		return nil, err
	}
	s.log.Infof("🎨 Logo added: %s (%s, %d bytes)", logo.ID, name, len(binary))
	return logo, nil
}

// SelectLogo - make the logo with the given id the active selection
func (s *Store) SelectLogo(id string) (*Logo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logo := s.findLogo(id)
	if logo == nil {
		return nil, ErrLogoNotFound
	}
	s.selected = id
	return logo, nil
}

// SelectedLogo - the active logo, or nil
func (s *Store) SelectedLogo() *Logo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return nil
	}
	return s.findLogo(s.selected)
}

// LogoBinary - the explicit reconstruction path. If the original binary is
// still held (same session as the upload) it is returned directly; after a
// reload the bytes are rebuilt by decoding the stored inline preview.
func (s *Store) LogoBinary(logo *Logo) ([]byte, error) {
	if logo == nil {
		return nil, ErrLogoNotFound
	}
	if len(logo.SourceBlob) > 0 {
		return logo.SourceBlob, nil
	}
	data, _, err := imagex.DecodeDataURL(logo.Preview)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct logo binary: %w", err)
	}
	return data, nil
}

// DeleteLogo - remove from the collection and persist; deleting the active
// logo clears the selection.
func (s *Store) DeleteLogo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, logo := range s.logos {
		if logo.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrLogoNotFound
	}

	s.logos = append(s.logos[:idx], s.logos[idx+1:]...)
	if s.selected == id {
		s.selected = ""
	}

	if err := s.persistLogos(ctx); err != nil {
		return err
	}
	s.log.Infof("🗑️  Logo deleted: %s", id)
	return nil
}

// Logos - current collection in insertion order
func (s *Store) Logos() []*Logo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Logo, len(s.logos))
	copy(out, s.logos)
	return out
}

// AppendHistory - record one completed generation and persist. The item's
// settings must already be a snapshot; the store additionally deep-copies
// them so no caller can mutate a stored entry afterwards.
func (s *Store) AppendHistory(ctx context.Context, item HistoryItem) (*HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	item.Settings = item.Settings.Clone()

	stored := item
	s.history = append(s.history, &stored)

	if err := s.persistHistory(ctx); err != nil {
		return nil, err
	}
	s.log.Infof("🕘 History appended: %s (%s, %d assets)", stored.ID, stored.Mode, len(stored.Result.Assets))
	return &stored, nil
}

// History - stored items, most recent first
func (s *Store) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HistoryItem, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		item := *s.history[i]
		item.Settings = item.Settings.Clone()
		out = append(out, item)
	}
	return out
}

// GetHistory - look up one stored item by id. The returned value is a copy;
// restoring it into a session must not mutate the stored entry.
func (s *Store) GetHistory(id string) (HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.history {
		if item.ID == id {
			copied := *item
			copied.Settings = copied.Settings.Clone()
			return copied, nil
		}
	}
	return HistoryItem{}, ErrHistoryNotFound
}

func (s *Store) findLogo(id string) *Logo {
	for _, logo := range s.logos {
		if logo.ID == id {
			return logo
		}
	}
	return nil
}

func (s *Store) persistLogos(ctx context.Context) error {
	persisted := make([]persistedLogo, 0, len(s.logos))
	for _, logo := range s.logos {
		persisted = append(persisted, persistedLogo{ID: logo.ID, Name: logo.Name, Preview: logo.Preview})
	}
	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to serialize logo collection: %w", err)
	}
	if err := s.kv.Set(ctx, logosKey, data); err != nil {
		return fmt.Errorf("failed to persist logo collection: %w", err)
	}
	return nil
}

func (s *Store) persistHistory(ctx context.Context) error {
	data, err := json.Marshal(s.history)
	if err != nil {
		return fmt.Errorf("failed to serialize history collection: %w", err)
	}
	if err := s.kv.Set(ctx, historyKey, data); err != nil {
		return fmt.Errorf("failed to persist history collection: %w", err)
	}
	return nil
}
