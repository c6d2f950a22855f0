package designer

// Patch - a sparse option update with the fixed vocabulary the command
// parser emits. Absent fields are nil and leave the option untouched;
// unknown keys in the wire form never reach this struct.
type Patch struct {
	LogoSize      *int     `json:"logo_size,omitempty"`
	LogoPosition  *string  `json:"logo_position,omitempty"`
	LogoEnabled   *bool    `json:"logo_enabled,omitempty"`
	TitleFontSize *int     `json:"title_font_size,omitempty"`
	TitlePosition *string  `json:"title_position,omitempty"`
	TitleOpacity  *float64 `json:"title_opacity,omitempty"`
	Formats       []string `json:"formats,omitempty"`
	Title         *string  `json:"title,omitempty"`
	CTA           *string  `json:"cta,omitempty"`
}

// IsEmpty - report whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.LogoSize == nil && p.LogoPosition == nil && p.LogoEnabled == nil &&
		p.TitleFontSize == nil && p.TitlePosition == nil && p.TitleOpacity == nil &&
		p.Formats == nil && p.Title == nil && p.CTA == nil
}

// Apply - fold the patch into a copy of the options. Numeric values are
// clamped to their bounds; enum values outside the vocabulary are dropped;
// an empty format list is dropped so a patch can never make generation
// impossible on its own.
func (p Patch) Apply(o Options) Options {
	out := o.Clone()

	if p.LogoSize != nil {
		out.LogoSize = clampInt(*p.LogoSize, MinLogoSize, MaxLogoSize)
	}
	if p.LogoPosition != nil && validLogoPosition(*p.LogoPosition) {
		out.LogoPosition = *p.LogoPosition
	}
	if p.LogoEnabled != nil {
		out.LogoEnabled = *p.LogoEnabled
	}
	if p.TitleFontSize != nil {
		out.TitleFontSize = clampInt(*p.TitleFontSize, MinTitleFontSize, MaxTitleFontSize)
	}
	if p.TitlePosition != nil && validTextPosition(*p.TitlePosition) {
		out.TextPosition = *p.TitlePosition
	}
	if p.TitleOpacity != nil {
		out.TextOpacity = clampFloat(*p.TitleOpacity, 0, 1)
	}
	if len(p.Formats) > 0 {
		formats := make([]string, 0, len(p.Formats))
		for _, key := range p.Formats {
			if ValidFormatKey(key) {
				formats = append(formats, key)
			}
		}
		if len(formats) > 0 {
			out.SelectedFormats = formats
		}
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.CTA != nil {
		out.CTA = *p.CTA
	}

	return out
}
