// Package chat is the thin boundary to the external command parser: it sends
// raw text plus the current options and maps the returned sparse patch onto
// the designer vocabulary.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"media-studio-server/modules/designer"
)

// Bridge - HTTP client for the parse-command service
type Bridge struct {
	baseURL string
	http    *http.Client
}

func NewBridge(baseURL string) *Bridge {
	return &Bridge{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type commandRequest struct {
	Command        string           `json:"command"`
	CurrentOptions designer.Options `json:"current_options"`
}

type commandResponse struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Apply - parse commandText against current and return the acknowledgment
// plus the resulting patch. Unrecognized keys in the response params are
// ignored by construction: only the fixed vocabulary reaches the Patch.
// An empty patch still yields a visible acknowledgment.
func (b *Bridge) Apply(ctx context.Context, commandText string, current designer.Options) (string, designer.Patch, error) {
	payload, err := json.Marshal(commandRequest{Command: commandText, CurrentOptions: current})
	if err != nil {
		return "", designer.Patch{}, fmt.Errorf("failed to serialize command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/parse-command", bytes.NewReader(payload))
	if err != nil {
		return "", designer.Patch{}, fmt.Errorf("failed to create parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", designer.Patch{}, fmt.Errorf("command parser unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", designer.Patch{}, fmt.Errorf("failed to read parser response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", designer.Patch{}, fmt.Errorf("command parser returned status %d", resp.StatusCode)
	}

	var parsed commandResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", designer.Patch{}, fmt.Errorf("failed to parse command response: %w", err)
	}

	var patch designer.Patch
	if len(parsed.Params) > 0 {
		// Unknown param keys simply do not bind to any Patch field.
		if err := json.Unmarshal(parsed.Params, &patch); err != nil {
			return "", designer.Patch{}, fmt.Errorf("failed to decode command params: %w", err)
		}
	}

	action := parsed.Action
	if action == "" {
		action = "No changes applied."
	}
	return action, patch, nil
}
