package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-studio-server/modules/common/config"
	"media-studio-server/modules/common/imagex"
)

func newTestService(t *testing.T) (*Service, *config.Config) {
	t.Helper()
	cfg := &config.Config{StaticRoot: t.TempDir()}
	service, err := NewService(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	return service, cfg
}

func sourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSmartCropDimensions(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 400, 400))

	cases := []struct{ w, h int }{
		{1200, 675},
		{1080, 1080},
		{1080, 1920},
		{1080, 1350},
	}
	for _, c := range cases {
		out := smartCrop(src, c.w, c.h)
		assert.Equal(t, c.w, out.Bounds().Dx())
		assert.Equal(t, c.h, out.Bounds().Dy())
	}
}

func TestGenerateAssetsWritesFiles(t *testing.T) {
	service, cfg := newTestService(t)

	result, err := service.GenerateAssets(context.Background(), GenerateInput{
		Mode:          "from-image",
		Image:         sourcePNG(t, 400, 400),
		Title:         "Test Sale 50%",
		CTA:           "Buy Now",
		TitleFontSize: 68,
		CTAFontSize:   50,
		TextPosition:  "center",
		TextOpacity:   0.6,
		Formats:       []string{"16:9", "1:1"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Assets, 2)
	assert.Equal(t, 2, result.Metadata.TotalAssets)
	assert.Equal(t, "from-image", result.Metadata.Mode)
	assert.False(t, result.Metadata.GeneratedAt.IsZero())

	for _, asset := range result.Assets {
		assert.True(t, strings.HasPrefix(asset.URL, "/static/generated/"))

		path := filepath.Join(cfg.StaticRoot, "generated", asset.Filename)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		img, format, err := imagex.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, asset.Width, img.Bounds().Dx())
		assert.Equal(t, asset.Height, img.Bounds().Dy())
	}
}

func TestGenerateAssetsPlaceholderWithoutImage(t *testing.T) {
	service, _ := newTestService(t)

	result, err := service.GenerateAssets(context.Background(), GenerateInput{
		Mode:         "text-to-creative",
		Prompt:       "summer sale banner",
		Title:        "Summer Sale",
		TextPosition: "top",
		TextOpacity:  0.6,
		Formats:      []string{"1:1"},
	})
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	assert.Equal(t, "summer sale banner", result.Metadata.Prompt)
}

func TestGenerateAssetsSkipsUnknownFormats(t *testing.T) {
	service, _ := newTestService(t)

	result, err := service.GenerateAssets(context.Background(), GenerateInput{
		Mode:    "from-image",
		Image:   sourcePNG(t, 200, 200),
		Formats: []string{"1:1", "3:4", "21:9"},
	})
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	assert.Equal(t, "1:1", result.Assets[0].Format)
}

func TestPrepareLogoRemovesWhiteAndResizes(t *testing.T) {
	service, _ := newTestService(t)

	// White background with a colored square in the middle
	logoImg := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x >= 30 && x < 70 && y >= 30 && y < 70 {
				logoImg.SetNRGBA(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
			} else {
				logoImg.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, logoImg))

	prepared, err := service.prepareLogo(buf.Bytes(), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, prepared.Bounds().Dx())
	assert.Equal(t, 50, prepared.Bounds().Dy())

	// Corners were white, so they end up fully transparent.
	corner := color.NRGBAModel.Convert(prepared.At(1, 1)).(color.NRGBA)
	assert.Equal(t, uint8(0), corner.A)

	// The colored center survives at reduced overlay opacity.
	center := color.NRGBAModel.Convert(prepared.At(25, 25)).(color.NRGBA)
	assert.Greater(t, center.A, uint8(150))
}

func TestPreviewImageFallsBackToPlaceholder(t *testing.T) {
	service, _ := newTestService(t)

	url, err := service.PreviewImage(context.Background(), "dramatic product shot")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	data, _, err := imagex.DecodeDataURL(url)
	require.NoError(t, err)
	img, _, err := imagex.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 1200, img.Bounds().Dy())
}
