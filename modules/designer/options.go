// Package designer holds the mutable design configuration edited during a
// studio session: overlay text, logo placement and the output format set.
package designer

// Text positions
const (
	TextTop    = "top"
	TextCenter = "center"
	TextBottom = "bottom"
)

// Logo corner positions
const (
	LogoTopLeft     = "top-left"
	LogoTopRight    = "top-right"
	LogoBottomLeft  = "bottom-left"
	LogoBottomRight = "bottom-right"
)

// Numeric bounds for patchable fields
const (
	MinTitleFontSize = 60
	MaxTitleFontSize = 120
	MinCTAFontSize   = 30
	MaxCTAFontSize   = 80
	MinLogoSize      = 80
	MaxLogoSize      = 300
)

// FormatSpec - one target output format
type FormatSpec struct {
	Key      string `json:"format"`
	Platform string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Formats - the fixed output format enumeration
var Formats = []FormatSpec{
	{Key: "16:9", Platform: "Facebook Feed", Width: 1200, Height: 675},
	{Key: "1:1", Platform: "Instagram Square", Width: 1080, Height: 1080},
	{Key: "9:16", Platform: "Instagram Story", Width: 1080, Height: 1920},
	{Key: "4:5", Platform: "Facebook/Instagram Portrait", Width: 1080, Height: 1350},
}

// FormatByKey - look up a format spec by its key
func FormatByKey(key string) (FormatSpec, bool) {
	for _, f := range Formats {
		if f.Key == key {
			return f, true
		}
	}
	return FormatSpec{}, false
}

// ValidFormatKey - report whether key is part of the enumeration
func ValidFormatKey(key string) bool {
	_, ok := FormatByKey(key)
	return ok
}

// Options - the full configuration of one generation request. Plain value:
// copying it never retains ownership of any binary resource.
type Options struct {
	Title         string  `json:"title"`
	CTA           string  `json:"cta"`
	TitleFontSize int     `json:"titleFontSize"`
	CTAFontSize   int     `json:"ctaFontSize"`
	TextPosition  string  `json:"textPosition"`
	TextOpacity   float64 `json:"textOpacity"`

	LogoEnabled  bool   `json:"logoEnabled"`
	LogoPosition string `json:"logoPosition"`
	LogoSize     int    `json:"logoSize"`

	SelectedFormats []string `json:"selectedFormats"`
}

// DefaultOptions - the configuration a fresh session starts from
func DefaultOptions() Options {
	return Options{
		TitleFontSize: 68,
		CTAFontSize:   50,
		TextPosition:  TextCenter,
		TextOpacity:   0.6,

		LogoEnabled:  true,
		LogoPosition: LogoTopRight,
		LogoSize:     150,

		SelectedFormats: []string{"16:9", "1:1", "9:16", "4:5"},
	}
}

// Clone - deep copy; the format slice must not alias the original
func (o Options) Clone() Options {
	clone := o
	clone.SelectedFormats = make([]string, len(o.SelectedFormats))
	copy(clone.SelectedFormats, o.SelectedFormats)
	return clone
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func validTextPosition(p string) bool {
	return p == TextTop || p == TextCenter || p == TextBottom
}

func validLogoPosition(p string) bool {
	return p == LogoTopLeft || p == LogoTopRight || p == LogoBottomLeft || p == LogoBottomRight
}
