package library

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/common/kv"
	"media-studio-server/modules/designer"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		img.SetNRGBA(i, i, color.NRGBA{R: uint8(40 * i), G: 80, B: 120, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore() (*Store, kv.Store) {
	flat := kv.NewMemory()
	return NewStore(flat, zap.NewNop().Sugar()), flat
}

// failingKV - kv.Store whose writes always fail
type failingKV struct {
	kv.Store
}

func (f failingKV) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func TestLoadRecoversFromMalformedCollections(t *testing.T) {
	ctx := context.Background()
	flat := kv.NewMemory()
	require.NoError(t, flat.Set(ctx, "media_studio_logos", []byte(`{"not": "a list"`)))
	require.NoError(t, flat.Set(ctx, "media_studio_history", []byte(`garbage`)))

	store := NewStore(flat, zap.NewNop().Sugar())
	store.Load(ctx)

	assert.Empty(t, store.Logos())
	assert.Empty(t, store.History())

	// The store stays usable: new writes replace the corrupted payloads.
	logo, err := store.AddLogo(ctx, testPNG(t), "brand.png")
	require.NoError(t, err)
	_, err = store.AppendHistory(ctx, HistoryItem{Mode: "from-image", Settings: designer.DefaultOptions()})
	require.NoError(t, err)

	reloaded := NewStore(flat, zap.NewNop().Sugar())
	reloaded.Load(ctx)
	require.Len(t, reloaded.Logos(), 1)
	assert.Equal(t, logo.ID, reloaded.Logos()[0].ID)
	assert.Len(t, reloaded.History(), 1)
}

func TestMutationsSurfacePersistErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(failingKV{kv.NewMemory()}, zap.NewNop().Sugar())

	_, err := store.AddLogo(ctx, testPNG(t), "brand.png")
	assert.ErrorContains(t, err, "disk full")

	_, err = store.AppendHistory(ctx, HistoryItem{Mode: "from-image", Settings: designer.DefaultOptions()})
	assert.ErrorContains(t, err, "disk full")
}

func TestAddLogoSelectsAndPersists(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	logo, err := store.AddLogo(ctx, testPNG(t), "brand.png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(logo.ID, "logo_"))
	assert.True(t, strings.HasPrefix(logo.Preview, "data:image/png;base64,"))

	selected := store.SelectedLogo()
	require.NotNil(t, selected)
	assert.Equal(t, logo.ID, selected.ID)
}

func TestLogoIDsUniqueWithinBurst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		logo, err := store.AddLogo(ctx, testPNG(t), "burst.png")
		require.NoError(t, err)
		assert.False(t, seen[logo.ID], "duplicate id %s", logo.ID)
		seen[logo.ID] = true
	}
}

func TestLogoBinaryReconstructedAfterReload(t *testing.T) {
	ctx := context.Background()
	flat := kv.NewMemory()
	original := testPNG(t)

	first := NewStore(flat, zap.NewNop().Sugar())
	added, err := first.AddLogo(ctx, original, "brand.png")
	require.NoError(t, err)

	// Fresh store over the same flat data simulates a restart: the raw
	// binary is gone, only the inline preview survives.
	second := NewStore(flat, zap.NewNop().Sugar())
	second.Load(ctx)

	logos := second.Logos()
	require.Len(t, logos, 1)
	assert.Equal(t, added.ID, logos[0].ID)
	assert.Equal(t, "brand.png", logos[0].Name)
	assert.Nil(t, logos[0].SourceBlob)

	rebuilt, err := second.LogoBinary(logos[0])
	require.NoError(t, err)
	assert.Equal(t, original, rebuilt)
}

func TestSelectionNotPersisted(t *testing.T) {
	ctx := context.Background()
	flat := kv.NewMemory()

	first := NewStore(flat, zap.NewNop().Sugar())
	_, err := first.AddLogo(ctx, testPNG(t), "brand.png")
	require.NoError(t, err)

	second := NewStore(flat, zap.NewNop().Sugar())
	second.Load(ctx)
	assert.Nil(t, second.SelectedLogo())
}

func TestDeleteSelectedLogoClearsSelection(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	first, err := store.AddLogo(ctx, testPNG(t), "a.png")
	require.NoError(t, err)
	second, err := store.AddLogo(ctx, testPNG(t), "b.png")
	require.NoError(t, err)

	// Adding auto-selects, so b is currently active.
	require.NoError(t, store.DeleteLogo(ctx, second.ID))
	assert.Nil(t, store.SelectedLogo())

	// The other logo is still there and selectable.
	selected, err := store.SelectLogo(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, selected.ID)

	assert.ErrorIs(t, store.DeleteLogo(ctx, "logo_missing"), ErrLogoNotFound)
}

func TestHistoryTimestampSurvivesReload(t *testing.T) {
	ctx := context.Background()
	flat := kv.NewMemory()

	first := NewStore(flat, zap.NewNop().Sugar())
	stored, err := first.AppendHistory(ctx, HistoryItem{
		Mode:     "from-image",
		Settings: designer.DefaultOptions(),
		Result:   assetreq.GenerateResponse{Status: "success"},
	})
	require.NoError(t, err)
	require.False(t, stored.Timestamp.IsZero())

	second := NewStore(flat, zap.NewNop().Sugar())
	second.Load(ctx)

	items := second.History()
	require.Len(t, items, 1)

	// The stored value is a real point in time, not display text: date
	// arithmetic against it still works after the round trip.
	assert.True(t, items[0].Timestamp.Equal(stored.Timestamp))
	assert.Less(t, time.Since(items[0].Timestamp), time.Minute)
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	for _, title := range []string{"first", "second", "third"} {
		opts := designer.DefaultOptions()
		opts.Title = title
		_, err := store.AppendHistory(ctx, HistoryItem{Mode: "from-image", Settings: opts})
		require.NoError(t, err)
	}

	items := store.History()
	require.Len(t, items, 3)
	assert.Equal(t, "third", items[0].Settings.Title)
	assert.Equal(t, "first", items[2].Settings.Title)
}

func TestHistorySettingsAreSnapshots(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	opts := designer.DefaultOptions()
	opts.Title = "Launch"
	stored, err := store.AppendHistory(ctx, HistoryItem{Mode: "from-image", Settings: opts})
	require.NoError(t, err)

	// Mutating the options used for the append must not reach the store.
	opts.Title = "changed"
	opts.SelectedFormats[0] = "changed"

	item, err := store.GetHistory(stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", item.Settings.Title)
	assert.Equal(t, "16:9", item.Settings.SelectedFormats[0])

	// Mutating a returned copy must not either.
	item.Settings.Title = "tampered"
	again, err := store.GetHistory(stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", again.Settings.Title)

	_, err = store.GetHistory("missing")
	assert.ErrorIs(t, err, ErrHistoryNotFound)
}
