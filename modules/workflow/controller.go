// Package workflow drives one design session through its screens: pick a
// source, tune options, generate, browse results and history.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/chat"
	"media-studio-server/modules/common/imagex"
	"media-studio-server/modules/designer"
	"media-studio-server/modules/library"
)

// Workflow states
const (
	StateUpload  = "upload"
	StateEdit    = "edit"
	StateResults = "results"
	StateHistory = "history"
)

// Source modes
const (
	ModeFromImage      = "from-image"
	ModeTextToCreative = "text-to-creative"
)

var (
	ErrInvalidMode  = errors.New("mode must be from-image or text-to-creative")
	ErrNoSource     = errors.New("no source image or prompt set")
	ErrSessionReset = errors.New("session was reset while generating")
)

// Controller - a single session's workflow. All mutating methods are safe
// for concurrent use; Generate releases the lock for the duration of the
// render call so a Reset can interleave.
type Controller struct {
	mu sync.Mutex

	id            string
	state         string
	mode          string
	epoch         uint64
	sourceImage   []byte
	sourceName    string
	sourceDataURL string
	prompt        string
	previewURL    string
	options       designer.Options
	result        *assetreq.GenerateResponse

	library *library.Store
	render  *assetreq.Client
	bridge  *chat.Bridge
	log     *zap.SugaredLogger
}

// Snapshot - read-only view of the session for API responses
type Snapshot struct {
	ID         string                     `json:"id"`
	State      string                     `json:"state"`
	Mode       string                     `json:"mode,omitempty"`
	HasSource  bool                       `json:"hasSource"`
	SourceName string                     `json:"sourceName,omitempty"`
	Prompt     string                     `json:"prompt,omitempty"`
	PreviewURL string                     `json:"previewUrl,omitempty"`
	Options    designer.Options           `json:"options"`
	Result     *assetreq.GenerateResponse `json:"result,omitempty"`
}

func NewController(id string, lib *library.Store, render *assetreq.Client, bridge *chat.Bridge, log *zap.SugaredLogger) *Controller {
	return &Controller{
		id:      id,
		state:   StateUpload,
		options: designer.DefaultOptions(),
		library: lib,
		render:  render,
		bridge:  bridge,
		log:     log,
	}
}

// ChooseMode - pick the source mode on the upload screen
func (c *Controller) ChooseMode(mode string) error {
	if mode != ModeFromImage && mode != ModeTextToCreative {
		return ErrInvalidMode
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	return nil
}

// SetSource - accept an uploaded source image and advance to the editor
func (c *Controller) SetSource(data []byte, name string) error {
	if len(data) == 0 {
		return errors.New("empty source image")
	}
	if _, _, err := imagex.Decode(data); err != nil {
		return fmt.Errorf("unsupported source image: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeFromImage
	c.sourceImage = data
	c.sourceName = name
	c.sourceDataURL = imagex.EncodeDataURL(data)
	c.prompt = ""
	c.previewURL = ""
	c.state = StateEdit
	c.log.Infof("🖼️  Session %s: source set (%s, %d bytes)", c.id, name, len(data))
	return nil
}

// SetPrompt - accept a text prompt, fetch a preview from the render service
// and advance to the editor. The session still enters the editor when the
// preview fails; generation falls back to a server-side placeholder.
func (c *Controller) SetPrompt(ctx context.Context, prompt string) error {
	if prompt == "" {
		return errors.New("empty prompt")
	}

	previewURL, err := c.render.Preview(ctx, prompt)
	if err != nil {
		c.log.Warnf("⚠️ Session %s: preview failed: %v", c.id, err)
		previewURL = ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeTextToCreative
	c.prompt = prompt
	c.previewURL = previewURL
	c.sourceImage = nil
	c.sourceName = ""
	c.sourceDataURL = ""
	c.state = StateEdit
	return nil
}

// UpdateOptions - apply a partial settings change and return the merged
// options. Unknown fields were already dropped at decode time; out-of-range
// values are clamped.
func (c *Controller) UpdateOptions(patch designer.Patch) designer.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = patch.Apply(c.options)
	return c.options.Clone()
}

// Generate - snapshot the current design, send it to the render service and
// record the outcome. Validation errors (no formats, no source) surface
// before any network activity and leave the session untouched; onStart, when
// non-nil, runs only after the guards pass, just before the render call.
// A Reset issued while the render call is in flight wins: the late result is
// dropped and no history entry is written.
func (c *Controller) Generate(ctx context.Context, onStart func()) (*assetreq.GenerateResponse, error) {
	c.mu.Lock()
	if c.mode == "" || (c.mode == ModeFromImage && len(c.sourceImage) == 0) ||
		(c.mode == ModeTextToCreative && c.prompt == "") {
		c.mu.Unlock()
		return nil, ErrNoSource
	}

	epoch := c.epoch
	in := assetreq.Input{
		Mode:        c.mode,
		Options:     c.options.Clone(),
		SourceImage: c.sourceImage,
		SourceName:  c.sourceName,
		PreviewURL:  c.previewURL,
	}
	sourceDataURL := c.sourceDataURL
	prompt := c.prompt
	c.mu.Unlock()

	if logo := c.library.SelectedLogo(); logo != nil && in.Options.LogoEnabled {
		binary, err := c.library.LogoBinary(logo)
		if err != nil {
			c.log.Warnf("⚠️ Session %s: logo %s unusable, generating without it: %v", c.id, logo.ID, err)
		} else {
			in.LogoBinary = binary
			in.LogoName = logo.Name
		}
	}

	req, err := assetreq.Build(ctx, in)
	if err != nil {
		return nil, err
	}

	if onStart != nil {
		onStart()
	}

	result, err := c.render.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Infof("🚮 Session %s: dropping stale generation result", c.id)
		return nil, ErrSessionReset
	}
	c.result = result
	c.state = StateResults
	c.mu.Unlock()

	if _, err := c.library.AppendHistory(ctx, library.HistoryItem{
		Mode:        in.Mode,
		SourceImage: sourceDataURL,
		Prompt:      prompt,
		Settings:    in.Options,
		Result:      *result,
	}); err != nil {
		c.log.Errorf("❌ Session %s: failed to persist history: %v", c.id, err)
	}

	return result, nil
}

// BackToEdit - return from results to the editor, keeping everything.
// Only defined from the results screen; the history screen leaves via
// Reset or RestoreHistory.
func (c *Controller) BackToEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateResults {
		c.state = StateEdit
	}
}

// OpenHistory - switch to the history screen
func (c *Controller) OpenHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateHistory
}

// RestoreHistory - rehydrate a past generation into the session and show its
// results. No render call is made; the stored assets are displayed as-is.
func (c *Controller) RestoreHistory(id string) error {
	item, err := c.library.GetHistory(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.mode = item.Mode
	c.options = item.Settings.Clone()
	c.prompt = item.Prompt
	c.previewURL = ""
	c.sourceDataURL = item.SourceImage
	c.sourceName = ""
	c.sourceImage = nil
	if item.SourceImage != "" {
		if data, _, err := imagex.DecodeDataURL(item.SourceImage); err == nil {
			c.sourceImage = data
			c.sourceName = "restored.png"
		}
	}
	restored := item.Result
	c.result = &restored
	c.state = StateResults
	c.log.Infof("⏪ Session %s: restored history item %s", c.id, id)
	return nil
}

// Reset - abandon the session's design and return to the upload screen.
// Bumps the epoch so an in-flight generation cannot land afterwards. Stored
// logos and history are untouched.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.mode = ""
	c.sourceImage = nil
	c.sourceName = ""
	c.sourceDataURL = ""
	c.prompt = ""
	c.previewURL = ""
	c.options = designer.DefaultOptions()
	c.result = nil
	c.state = StateUpload
}

// ApplyCommand - run a chat command through the parser service and apply the
// resulting change to the session's options.
func (c *Controller) ApplyCommand(ctx context.Context, command string) (string, designer.Options, error) {
	c.mu.Lock()
	current := c.options.Clone()
	c.mu.Unlock()

	action, patch, err := c.bridge.Apply(ctx, command, current)
	if err != nil {
		return "", designer.Options{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = patch.Apply(c.options)
	return action, c.options.Clone(), nil
}

// Snapshot - current session view
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:         c.id,
		State:      c.state,
		Mode:       c.mode,
		HasSource:  len(c.sourceImage) > 0,
		SourceName: c.sourceName,
		Prompt:     c.prompt,
		PreviewURL: c.previewURL,
		Options:    c.options.Clone(),
		Result:     c.result,
	}
}
