// Package render is the asset rendering service: smart crop to the target
// format, text burn-in, logo overlay, file output.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"google.golang.org/genai"

	"media-studio-server/modules/common/config"
	"media-studio-server/modules/common/imagex"
	"media-studio-server/modules/designer"
	"media-studio-server/modules/matte"
)

// Service - renders assets and text-to-creative previews
type Service struct {
	cfg         *config.Config
	log         *zap.SugaredLogger
	genaiClient *genai.Client
	titleFont   *opentype.Font
	ctaFont     *opentype.Font
}

func NewService(cfg *config.Config, log *zap.SugaredLogger) (*Service, error) {
	titleFont, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse title font: %w", err)
	}
	ctaFont, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cta font: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		log:       log,
		titleFont: titleFont,
		ctaFont:   ctaFont,
	}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			log.Warnf("⚠️  Failed to create Genai client, previews use the local placeholder: %v", err)
		} else {
			s.genaiClient = client
			log.Info("✅ Genai client initialized")
		}
	}

	return s, nil
}

// GenerateAssets - render one asset per requested format and save them under
// the static root. Unknown format keys are skipped, matching the request
// contract rather than failing the whole batch.
func (s *Service) GenerateAssets(ctx context.Context, in GenerateInput) (*GenerateResponse, error) {
	source := in.Image
	if len(source) == 0 {
		s.log.Infof("🎨 No source image, generating placeholder (mode: %s)", in.Mode)
		placeholder, err := s.placeholderImage()
		if err != nil {
			return nil, err
		}
		source = placeholder
	}

	base, _, err := imagex.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}

	var logo image.Image
	if in.LogoEnabled && len(in.LogoFile) > 0 {
		logo, err = s.prepareLogo(in.LogoFile, in.LogoSize)
		if err != nil {
			s.log.Warnf("⚠️  Failed to prepare logo, rendering without it: %v", err)
			logo = nil
		}
	}

	outputDir := filepath.Join(s.cfg.StaticRoot, "generated")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	randomID := rand.Intn(999999)

	assets := []Asset{}
	for _, key := range in.Formats {
		spec, ok := designer.FormatByKey(key)
		if !ok {
			s.log.Warnf("⚠️  Skipping unknown format: %s", key)
			continue
		}

		img := smartCrop(base, spec.Width, spec.Height)
		if logo != nil {
			img = overlayLogo(img, logo, in.LogoPosition)
		}
		if in.Title != "" || in.CTA != "" {
			img = s.overlayText(img, in)
		}

		ext := "jpg"
		if in.Output == "webp" {
			ext = "webp"
		}
		filename := fmt.Sprintf("media_studio_%s_%s_%d.%s",
			strings.ReplaceAll(spec.Key, ":", "x"), timestamp, randomID, ext)

		if err := s.saveAsset(img, filepath.Join(outputDir, filename), in.Output); err != nil {
			return nil, fmt.Errorf("failed to save %s asset: %w", spec.Key, err)
		}

		assets = append(assets, Asset{
			Platform: spec.Platform,
			Format:   spec.Key,
			Width:    spec.Width,
			Height:   spec.Height,
			URL:      "/static/generated/" + filename,
			Filename: filename,
		})
	}

	prompt := in.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("title: %s, cta: %s", in.Title, in.CTA)
	}

	s.log.Infof("✅ Generated %d assets (mode: %s)", len(assets), in.Mode)

	return &GenerateResponse{
		Status: StatusSuccess,
		Assets: assets,
		Metadata: Metadata{
			GeneratedAt:  time.Now().UTC(),
			Mode:         in.Mode,
			Prompt:       prompt,
			ParsedPrompt: map[string]string{"title": in.Title, "cta": in.CTA},
			TotalAssets:  len(assets),
		},
	}, nil
}

// smartCrop - center-crop to the target aspect ratio, then resize
func smartCrop(src image.Image, targetWidth, targetHeight int) *image.RGBA {
	bounds := src.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	srcRatio := float64(srcWidth) / float64(srcHeight)
	targetRatio := float64(targetWidth) / float64(targetHeight)

	var cropRect image.Rectangle
	if targetRatio > srcRatio {
		// Target is wider: crop height
		newHeight := int(float64(srcWidth) / targetRatio)
		offset := (srcHeight - newHeight) / 2
		cropRect = image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+newHeight)
	} else {
		// Target is taller: crop width
		newWidth := int(float64(srcHeight) * targetRatio)
		offset := (srcWidth - newWidth) / 2
		cropRect = image.Rect(bounds.Min.X+offset, bounds.Min.Y, bounds.Min.X+offset+newWidth, bounds.Max.Y)
	}

	cropped := transform.Crop(src, cropRect)
	return transform.Resize(cropped, targetWidth, targetHeight, transform.Lanczos)
}

// prepareLogo - remove the white background and resize to the requested
// width, preserving aspect ratio and alpha.
func (s *Service) prepareLogo(logoData []byte, logoSize int) (image.Image, error) {
	matted, err := matte.Process(logoData, logoWhiteThreshold)
	if err != nil {
		return nil, err
	}
	logo, _, err := imagex.Decode(matted)
	if err != nil {
		return nil, err
	}

	bounds := logo.Bounds()
	if logoSize <= 0 {
		logoSize = 150
	}
	newHeight := int(float64(logoSize) * float64(bounds.Dy()) / float64(bounds.Dx()))
	if newHeight < 1 {
		newHeight = 1
	}
	resized := transform.Resize(logo, logoSize, newHeight, transform.Lanczos)

	// Scale alpha to the overlay opacity
	faded := image.NewNRGBA(resized.Bounds())
	for y := resized.Bounds().Min.Y; y < resized.Bounds().Max.Y; y++ {
		for x := resized.Bounds().Min.X; x < resized.Bounds().Max.X; x++ {
			px := color.NRGBAModel.Convert(resized.At(x, y)).(color.NRGBA)
			px.A = uint8(float64(px.A) * logoOpacity)
			faded.SetNRGBA(x, y, px)
		}
	}
	return faded, nil
}

// overlayLogo - paste the prepared logo into the requested corner
func overlayLogo(base *image.RGBA, logo image.Image, position string) *image.RGBA {
	w := base.Bounds().Dx()
	h := base.Bounds().Dy()
	lw := logo.Bounds().Dx()
	lh := logo.Bounds().Dy()

	var pos image.Point
	switch position {
	case designer.LogoTopLeft:
		pos = image.Pt(cornerPadding, cornerPadding)
	case designer.LogoBottomLeft:
		pos = image.Pt(cornerPadding, h-lh-cornerPadding)
	case designer.LogoBottomRight:
		pos = image.Pt(w-lw-cornerPadding, h-lh-cornerPadding)
	default: // top-right
		pos = image.Pt(w-lw-cornerPadding, cornerPadding)
	}

	draw.Draw(base, image.Rect(pos.X, pos.Y, pos.X+lw, pos.Y+lh), logo, logo.Bounds().Min, draw.Over)
	return base
}

// overlayText - full-width semi-transparent band with a centered bold title
// and an optional gold CTA pill below it.
func (s *Service) overlayText(base *image.RGBA, in GenerateInput) *image.RGBA {
	w := base.Bounds().Dx()
	h := base.Bounds().Dy()

	titleFace, err := opentype.NewFace(s.titleFont, &opentype.FaceOptions{
		Size: float64(in.TitleFontSize), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		s.log.Warnf("⚠️  Failed to build title face: %v", err)
		return base
	}
	defer titleFace.Close()

	ctaSize := in.CTAFontSize
	if ctaSize <= 0 {
		ctaSize = in.TitleFontSize / 2
	}
	ctaFace, err := opentype.NewFace(s.ctaFont, &opentype.FaceOptions{
		Size: float64(ctaSize), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		s.log.Warnf("⚠️  Failed to build cta face: %v", err)
		return base
	}
	defer ctaFace.Close()

	titleMetrics := titleFace.Metrics()
	titleHeight := (titleMetrics.Ascent + titleMetrics.Descent).Ceil()

	ctaHeight := 0
	if in.CTA != "" {
		ctaMetrics := ctaFace.Metrics()
		ctaHeight = (ctaMetrics.Ascent + ctaMetrics.Descent).Ceil() + 30
	}
	totalTextHeight := titleHeight + ctaHeight + 40

	var yStart int
	switch in.TextPosition {
	case designer.TextTop:
		yStart = int(float64(h) * 0.15)
	case designer.TextBottom:
		yStart = int(float64(h)*0.85) - totalTextHeight
	default:
		yStart = (h - totalTextHeight) / 2
	}

	// Band behind the text block
	alpha := uint8(clamp01(in.TextOpacity) * 255)
	band := image.Rect(0, yStart-cornerPadding, w, yStart+totalTextHeight+cornerPadding)
	draw.Draw(base, band.Intersect(base.Bounds()), image.NewUniform(color.NRGBA{0, 0, 0, alpha}), image.Point{}, draw.Over)

	drawer := &font.Drawer{Dst: base, Src: image.White, Face: titleFace}
	titleWidth := drawer.MeasureString(in.Title).Ceil()
	drawer.Dot = fixed.P((w-titleWidth)/2, yStart+titleMetrics.Ascent.Ceil())
	drawer.DrawString(in.Title)

	if in.CTA != "" {
		ctaDrawer := &font.Drawer{Dst: base, Src: image.Black, Face: ctaFace}
		ctaWidth := ctaDrawer.MeasureString(in.CTA).Ceil()
		ctaX := (w - ctaWidth) / 2
		ctaY := yStart + titleHeight + 30

		// Gold CTA pill
		ctaMetrics := ctaFace.Metrics()
		ctaTextHeight := (ctaMetrics.Ascent + ctaMetrics.Descent).Ceil()
		buttonRect := image.Rect(ctaX-15, ctaY-5, ctaX+ctaWidth+15, ctaY+ctaTextHeight+10)
		draw.Draw(base, buttonRect.Intersect(base.Bounds()), image.NewUniform(color.NRGBA{255, 215, 0, 255}), image.Point{}, draw.Over)

		ctaDrawer.Dot = fixed.P(ctaX, ctaY+ctaMetrics.Ascent.Ceil())
		ctaDrawer.DrawString(in.CTA)
	}

	return base
}

// placeholderImage - dark gradient used when text-to-creative arrives
// without a fetchable image
func (s *Service) placeholderImage() ([]byte, error) {
	const size = 1200
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		r := uint8(40 + (float64(y)/size)*60)
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{R: r, G: 40, B: 80, A: 255})
		}
	}
	return imagex.EncodePNG(img)
}

// PreviewImage - produce the text-to-creative preview as a data URL. Uses
// Gemini when configured, otherwise the deterministic local placeholder.
func (s *Service) PreviewImage(ctx context.Context, prompt string) (string, error) {
	if s.genaiClient != nil {
		if url, err := s.geminiPreview(ctx, prompt); err == nil {
			return url, nil
		} else {
			s.log.Warnf("⚠️  Gemini preview failed, falling back to placeholder: %v", err)
		}
	}

	placeholder, err := s.placeholderImage()
	if err != nil {
		return "", err
	}
	return imagex.EncodeDataURL(placeholder), nil
}

func (s *Service) geminiPreview(ctx context.Context, prompt string) (string, error) {
	content := &genai.Content{
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt + "\n\nGenerate one marketing-ready photograph for this brief."),
		},
	}

	result, err := s.genaiClient.Models.GenerateContent(
		ctx,
		s.cfg.GeminiModel,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: "1:1"},
		},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return fmt.Sprintf("data:%s;base64,%s", mime,
					base64.StdEncoding.EncodeToString(part.InlineData.Data)), nil
			}
		}
	}
	return "", fmt.Errorf("no image data in response")
}

func (s *Service) saveAsset(img image.Image, path string, output string) error {
	if output == "webp" {
		data, err := imagex.ConvertToWebP(img, 90.0)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
