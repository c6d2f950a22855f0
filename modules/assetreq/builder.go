// Package assetreq builds the multipart generation request from a design
// snapshot and talks to the render service.
package assetreq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-studio-server/modules/designer"
)

// Validation errors checked before any network call
var (
	ErrNoFormats     = errors.New("at least one output format must be selected")
	ErrNoSourceImage = errors.New("a source image is required in from-image mode")
)

// Input - everything one generation request is built from. Options are a
// snapshot taken by the caller; later edits must not leak into the request.
type Input struct {
	Mode        string
	Options     designer.Options
	SourceImage []byte // decoded source bytes, may be nil in text mode
	SourceName  string
	PreviewURL  string // text mode: the currently displayed generated image
	LogoBinary  []byte // only attached when Options.LogoEnabled
	LogoName    string
}

// Request - a transport-ready multipart body
type Request struct {
	Body        *bytes.Buffer
	ContentType string
}

var previewClient = &http.Client{Timeout: 15 * time.Second}

// Build - validate and serialize the input into a multipart request.
// In text-to-creative mode the displayed preview is fetched as binary at
// build time; if that fetch fails the request proceeds without an image and
// the render service applies its own fallback.
func Build(ctx context.Context, in Input) (*Request, error) {
	if len(in.Options.SelectedFormats) == 0 {
		return nil, ErrNoFormats
	}
	if in.Mode == "from-image" && len(in.SourceImage) == 0 {
		return nil, ErrNoSourceImage
	}

	source := in.SourceImage
	sourceName := in.SourceName
	if in.Mode == "text-to-creative" && len(source) == 0 && in.PreviewURL != "" {
		if fetched, err := fetchPreview(ctx, in.PreviewURL); err == nil {
			source = fetched
			sourceName = "preview.png"
		}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// Fixed field order keeps the wire output stable across requests.
	fields := []struct{ name, value string }{
		{"mode", in.Mode},
		{"title", in.Options.Title},
		{"cta", in.Options.CTA},
		{"title_font_size", strconv.Itoa(in.Options.TitleFontSize)},
		{"cta_font_size", strconv.Itoa(in.Options.CTAFontSize)},
		{"text_position", in.Options.TextPosition},
		{"text_opacity", strconv.FormatFloat(in.Options.TextOpacity, 'f', -1, 64)},
		{"logo_enabled", strconv.FormatBool(in.Options.LogoEnabled)},
		{"logo_position", in.Options.LogoPosition},
		{"logo_size", strconv.Itoa(in.Options.LogoSize)},
		{"formats", strings.Join(in.Options.SelectedFormats, ",")},
	}
	for _, field := range fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", field.name, err)
		}
	}

	if len(source) > 0 {
		if sourceName == "" {
			sourceName = "source.png"
		}
		part, err := writer.CreateFormFile("image", sourceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(source); err != nil {
			return nil, fmt.Errorf("failed to write image part: %w", err)
		}
	}

	// Logo travels only when enabled AND a binary is available; otherwise
	// the render service falls back to its default logo policy.
	if in.Options.LogoEnabled && len(in.LogoBinary) > 0 {
		logoName := in.LogoName
		if logoName == "" {
			logoName = "logo.png"
		}
		part, err := writer.CreateFormFile("logo_file", logoName)
		if err != nil {
			return nil, fmt.Errorf("failed to create logo part: %w", err)
		}
		if _, err := part.Write(in.LogoBinary); err != nil {
			return nil, fmt.Errorf("failed to write logo part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &Request{Body: body, ContentType: writer.FormDataContentType()}, nil
}

func fetchPreview(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := previewClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
