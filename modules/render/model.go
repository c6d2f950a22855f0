package render

import "time"

// Asset - one generated output file
type Asset struct {
	Platform string `json:"platform"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Metadata - generation metadata returned with the asset list
type Metadata struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Mode         string            `json:"mode"`
	Prompt       string            `json:"prompt,omitempty"`
	ParsedPrompt map[string]string `json:"parsed_prompt,omitempty"`
	TotalAssets  int               `json:"total_assets"`
}

// GenerateResponse - response body of POST /api/generate
type GenerateResponse struct {
	Status   string   `json:"status"`
	Assets   []Asset  `json:"assets"`
	Metadata Metadata `json:"metadata"`
}

// GenerateInput - decoded form of one generation request
type GenerateInput struct {
	Mode          string
	Image         []byte // nil in text mode; a placeholder is generated
	Prompt        string
	Title         string
	CTA           string
	TitleFontSize int
	CTAFontSize   int
	TextPosition  string
	TextOpacity   float64
	LogoEnabled   bool
	LogoFile      []byte
	LogoPosition  string
	LogoSize      int
	Formats       []string
	Output        string // "jpeg" (default) or "webp"
}

// Logo overlay constants
const (
	logoWhiteThreshold = 240
	logoOpacity        = 0.85
	cornerPadding      = 40
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)
