package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio-server/modules/designer"
)

func parserStub(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/parse-command", r.URL.Path)

		var req struct {
			Command        string           `json:"command"`
			CurrentOptions designer.Options `json:"current_options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Command)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
}

func TestApplyDecodesPatch(t *testing.T) {
	server := parserStub(t, `{"action": "Logo size increased: 150px → 200px", "params": {"logo_size": 200}}`)
	defer server.Close()

	bridge := NewBridge(server.URL)
	action, patch, err := bridge.Apply(context.Background(), "bigger logo", designer.DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, action, "Logo size increased")
	require.NotNil(t, patch.LogoSize)
	assert.Equal(t, 200, *patch.LogoSize)
	assert.True(t, patch.LogoPosition == nil && patch.Title == nil)
}

func TestApplyIgnoresUnknownParams(t *testing.T) {
	server := parserStub(t, `{"action": "ok", "params": {"sparkle": true, "logo_enabled": false}}`)
	defer server.Close()

	bridge := NewBridge(server.URL)
	_, patch, err := bridge.Apply(context.Background(), "no logo", designer.DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, patch.LogoEnabled)
	assert.False(t, *patch.LogoEnabled)
	assert.Nil(t, patch.LogoSize)
}

func TestApplyEmptyActionGetsAcknowledgment(t *testing.T) {
	server := parserStub(t, `{"action": "", "params": {}}`)
	defer server.Close()

	bridge := NewBridge(server.URL)
	action, patch, err := bridge.Apply(context.Background(), "mumble", designer.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "No changes applied.", action)
	assert.True(t, patch.IsEmpty())
}

func TestApplyParserUnreachable(t *testing.T) {
	bridge := NewBridge("http://127.0.0.1:1")
	_, _, err := bridge.Apply(context.Background(), "bigger logo", designer.DefaultOptions())
	assert.Error(t, err)
}

func TestApplyParserErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	bridge := NewBridge(server.URL)
	_, _, err := bridge.Apply(context.Background(), "bigger logo", designer.DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
