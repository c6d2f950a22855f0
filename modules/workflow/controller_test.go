package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/chat"
	"media-studio-server/modules/common/kv"
	"media-studio-server/modules/designer"
	"media-studio-server/modules/library"
	"media-studio-server/modules/parser"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// renderStub - counts /api/generate calls and replies with one asset per
// requested format after an optional delay.
func renderStub(calls *atomic.Int32, delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}

		r.ParseMultipartForm(32 << 20)
		var assets []map[string]interface{}
		for _, key := range bytes.Split([]byte(r.FormValue("formats")), []byte(",")) {
			assets = append(assets, map[string]interface{}{
				"format":   string(key),
				"url":      "/static/generated/stub.jpg",
				"filename": "stub.jpg",
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"assets": assets,
			"metadata": map[string]interface{}{
				"generated_at": time.Now().UTC(),
				"mode":         r.FormValue("mode"),
				"total_assets": len(assets),
			},
		})
	}))
}

func newTestController(t *testing.T, renderURL, parserURL string) (*Controller, *library.Store) {
	t.Helper()
	lib := library.NewStore(kv.NewMemory(), zap.NewNop().Sugar())
	ctrl := NewController("test-session", lib,
		assetreq.NewClient(renderURL), chat.NewBridge(parserURL), zap.NewNop().Sugar())
	return ctrl, lib
}

func TestFullGenerateFlow(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 0)
	defer server.Close()

	ctrl, lib := newTestController(t, server.URL, server.URL)

	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))
	assert.Equal(t, StateEdit, ctrl.Snapshot().State)

	title := "Test Sale 50%"
	ctrl.UpdateOptions(designer.Patch{Title: &title})

	result, err := ctrl.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, result.Assets, 4)
	assert.Equal(t, int32(1), calls.Load())

	snap := ctrl.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	require.NotNil(t, snap.Result)

	items := lib.History()
	require.Len(t, items, 1)
	assert.Equal(t, "Test Sale 50%", items[0].Settings.Title)
	assert.Equal(t, ModeFromImage, items[0].Mode)
	assert.Len(t, items[0].Result.Assets, 4)
}

func TestGenerateWithoutSourceMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 0)
	defer server.Close()

	ctrl, lib := newTestController(t, server.URL, server.URL)

	_, err := ctrl.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, StateUpload, ctrl.Snapshot().State)
	assert.Empty(t, lib.History())
}

func TestResetDuringGenerateDropsResult(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 300*time.Millisecond)
	defer server.Close()

	ctrl, lib := newTestController(t, server.URL, server.URL)
	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Generate(context.Background(), nil)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	ctrl.Reset()

	err := <-done
	assert.ErrorIs(t, err, ErrSessionReset)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateUpload, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, lib.History())
}

func TestResetKeepsLibrary(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 0)
	defer server.Close()

	ctrl, lib := newTestController(t, server.URL, server.URL)
	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))
	_, err := ctrl.Generate(context.Background(), nil)
	require.NoError(t, err)

	_, err = lib.AddLogo(context.Background(), testImage(t), "brand.png")
	require.NoError(t, err)

	ctrl.Reset()

	assert.Len(t, lib.History(), 1)
	assert.Len(t, lib.Logos(), 1)

	snap := ctrl.Snapshot()
	assert.Equal(t, designer.DefaultOptions(), snap.Options)
	assert.False(t, snap.HasSource)
	assert.Empty(t, snap.Mode)
}

func TestRestoreHistoryMakesNoRenderCall(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 0)
	defer server.Close()

	ctrl, lib := newTestController(t, server.URL, server.URL)
	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))

	title := "Summer Launch"
	ctrl.UpdateOptions(designer.Patch{Title: &title})

	_, err := ctrl.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	ctrl.Reset()

	items := lib.History()
	require.Len(t, items, 1)
	require.NoError(t, ctrl.RestoreHistory(items[0].ID))

	snap := ctrl.Snapshot()
	assert.Equal(t, StateResults, snap.State)
	assert.Equal(t, "Summer Launch", snap.Options.Title)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Result.Assets, 4)
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, ctrl.RestoreHistory("missing"), library.ErrHistoryNotFound)
}

func TestGenerateAttachesSelectedLogo(t *testing.T) {
	var sawLogo atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(32 << 20)
		if _, _, err := r.FormFile("logo_file"); err == nil {
			sawLogo.Store(true)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "success"})
	}))
	defer server.Close()

	ctrl, lib := newTestController(t, server.URL, server.URL)
	_, err := lib.AddLogo(context.Background(), testImage(t), "brand.png")
	require.NoError(t, err)

	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))
	_, err = ctrl.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, sawLogo.Load())
}

func TestApplyCommandThroughParser(t *testing.T) {
	r := mux.NewRouter()
	parser.NewHandler(zap.NewNop().Sugar()).RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	ctrl, _ := newTestController(t, server.URL, server.URL)
	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))

	action, options, err := ctrl.ApplyCommand(context.Background(), "bigger logo")
	require.NoError(t, err)
	assert.Contains(t, action, "Logo size increased")
	assert.Equal(t, 200, options.LogoSize)

	// Unrecognized commands acknowledge without changing anything.
	before := ctrl.Snapshot().Options
	action, after, err := ctrl.ApplyCommand(context.Background(), "make it pop")
	require.NoError(t, err)
	assert.Contains(t, action, "Could not understand")
	assert.Equal(t, before, after)
}

func TestBackToEditOnlyFromResults(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 0)
	defer server.Close()

	ctrl, _ := newTestController(t, server.URL, server.URL)
	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))

	// Not on the results screen yet, so nothing moves.
	ctrl.BackToEdit()
	assert.Equal(t, StateEdit, ctrl.Snapshot().State)

	_, err := ctrl.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, StateResults, ctrl.Snapshot().State)

	ctrl.BackToEdit()
	assert.Equal(t, StateEdit, ctrl.Snapshot().State)

	// The history screen does not go back to the editor.
	ctrl.OpenHistory()
	ctrl.BackToEdit()
	assert.Equal(t, StateHistory, ctrl.Snapshot().State)
}

func TestGenerateStartCallbackAfterGuards(t *testing.T) {
	var calls atomic.Int32
	server := renderStub(&calls, 0)
	defer server.Close()

	ctrl, _ := newTestController(t, server.URL, server.URL)

	// A guard rejection never announces a start.
	var started atomic.Int32
	_, err := ctrl.Generate(context.Background(), func() { started.Add(1) })
	assert.ErrorIs(t, err, ErrNoSource)
	assert.Equal(t, int32(0), started.Load())

	require.NoError(t, ctrl.SetSource(testImage(t), "product.png"))
	_, err = ctrl.Generate(context.Background(), func() { started.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, int32(1), started.Load())
}

func TestChooseModeValidation(t *testing.T) {
	ctrl, _ := newTestController(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	assert.ErrorIs(t, ctrl.ChooseMode("telepathy"), ErrInvalidMode)
	assert.NoError(t, ctrl.ChooseMode(ModeFromImage))
	assert.NoError(t, ctrl.ChooseMode(ModeTextToCreative))
}

func TestSetSourceRejectsGarbage(t *testing.T) {
	ctrl, _ := newTestController(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	assert.Error(t, ctrl.SetSource(nil, "empty.png"))
	assert.Error(t, ctrl.SetSource([]byte("not an image"), "bad.png"))
	assert.Equal(t, StateUpload, ctrl.Snapshot().State)
}
