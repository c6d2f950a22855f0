// Package parser turns natural-language design commands (Hebrew and English)
// into sparse parameter patches.
package parser

import (
	"fmt"
	"strings"

	"media-studio-server/modules/designer"
)

// Response - action description plus the parameter changes
type Response struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

func containsAny(command string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(command, word) {
			return true
		}
	}
	return false
}

// ParseCommand - match the command against the fixed rule set. Rules are
// ordered; the first match wins, unknown commands get a help fallback with
// an empty params map.
func ParseCommand(commandText string, current designer.Options) Response {
	command := strings.ToLower(strings.TrimSpace(commandText))

	currentLogoSize := current.LogoSize
	if currentLogoSize == 0 {
		currentLogoSize = 150
	}
	currentFontSize := current.TitleFontSize
	if currentFontSize == 0 {
		currentFontSize = 90
	}
	currentOpacity := current.TextOpacity
	if currentOpacity == 0 {
		currentOpacity = 0.6
	}

	// Size commands
	if containsAny(command, "הגדל", "גדול", "enlarge", "bigger", "larger") {
		if containsAny(command, "לוגו", "logo") {
			newSize := min(currentLogoSize+50, designer.MaxLogoSize)
			return Response{
				Action: fmt.Sprintf("Logo size increased: %dpx → %dpx", currentLogoSize, newSize),
				Params: map[string]interface{}{"logo_size": newSize},
			}
		}
		if containsAny(command, "פונט", "טקסט", "font", "text") {
			newSize := min(currentFontSize+10, designer.MaxTitleFontSize)
			return Response{
				Action: fmt.Sprintf("Font size increased: %dpx → %dpx", currentFontSize, newSize),
				Params: map[string]interface{}{"title_font_size": newSize},
			}
		}
	}

	if containsAny(command, "הקטן", "קטן", "smaller", "reduce") {
		if containsAny(command, "לוגו", "logo") {
			newSize := max(currentLogoSize-50, designer.MinLogoSize)
			return Response{
				Action: fmt.Sprintf("Logo size decreased: %dpx → %dpx", currentLogoSize, newSize),
				Params: map[string]interface{}{"logo_size": newSize},
			}
		}
		if containsAny(command, "פונט", "טקסט", "font", "text") {
			newSize := max(currentFontSize-10, designer.MinTitleFontSize)
			return Response{
				Action: fmt.Sprintf("Font size decreased: %dpx → %dpx", currentFontSize, newSize),
				Params: map[string]interface{}{"title_font_size": newSize},
			}
		}
	}

	// Logo position
	if containsAny(command, "לוגו", "logo") {
		left := containsAny(command, "שמאל", "left")
		right := containsAny(command, "ימין", "right")
		top := containsAny(command, "למעלה", "top", "עליון")
		bottom := containsAny(command, "למטה", "bottom", "תחתון")

		switch {
		case left && top:
			return Response{Action: "Logo moved to top-left", Params: map[string]interface{}{"logo_position": designer.LogoTopLeft}}
		case right && top:
			return Response{Action: "Logo moved to top-right", Params: map[string]interface{}{"logo_position": designer.LogoTopRight}}
		case left && bottom:
			return Response{Action: "Logo moved to bottom-left", Params: map[string]interface{}{"logo_position": designer.LogoBottomLeft}}
		case right && bottom:
			return Response{Action: "Logo moved to bottom-right", Params: map[string]interface{}{"logo_position": designer.LogoBottomRight}}
		}
	}

	// Logo toggle
	if containsAny(command, "בלי לוגו", "הסר לוגו", "ללא לוגו", "no logo", "remove logo", "hide logo") {
		return Response{Action: "Logo hidden", Params: map[string]interface{}{"logo_enabled": false}}
	}
	if containsAny(command, "הוסף לוגו", "הצג לוגו", "show logo", "add logo") {
		return Response{Action: "Logo shown", Params: map[string]interface{}{"logo_enabled": true}}
	}

	// Text position
	if containsAny(command, "טקסט", "text", "כותרת", "title") {
		if containsAny(command, "למעלה", "top", "עליון", "מעל") {
			return Response{Action: "Text moved to top", Params: map[string]interface{}{"title_position": designer.TextTop}}
		}
		if containsAny(command, "למטה", "bottom", "תחתון", "מתחת") {
			return Response{Action: "Text moved to bottom", Params: map[string]interface{}{"title_position": designer.TextBottom}}
		}
		if containsAny(command, "מרכז", "center", "באמצע") {
			return Response{Action: "Text centered", Params: map[string]interface{}{"title_position": designer.TextCenter}}
		}
	}

	// Opacity
	if containsAny(command, "שקוף", "transparent", "opacity") {
		if containsAny(command, "יותר", "more", "פחות") {
			newOpacity := maxFloat(currentOpacity-0.2, 0.1)
			return Response{
				Action: fmt.Sprintf("Background opacity reduced: %d%% → %d%%", int(currentOpacity*100), int(newOpacity*100)),
				Params: map[string]interface{}{"title_opacity": newOpacity},
			}
		}
	}
	if containsAny(command, "אטום", "solid", "כהה", "dark") {
		newOpacity := minFloat(currentOpacity+0.2, 0.9)
		return Response{
			Action: fmt.Sprintf("Background opacity increased: %d%% → %d%%", int(currentOpacity*100), int(newOpacity*100)),
			Params: map[string]interface{}{"title_opacity": newOpacity},
		}
	}

	// Format selection
	if containsAny(command, "רק", "only") {
		var selected []string
		if containsAny(command, "16:9", "facebook", "פייסבוק") {
			selected = append(selected, "16:9")
		}
		if containsAny(command, "1:1", "square", "ריבוע", "אינסטגרם") {
			selected = append(selected, "1:1")
		}
		if containsAny(command, "9:16", "story", "סטורי") {
			selected = append(selected, "9:16")
		}
		if containsAny(command, "4:5", "portrait", "פורטרט") {
			selected = append(selected, "4:5")
		}
		if len(selected) > 0 {
			return Response{
				Action: fmt.Sprintf("Formats set to: %s", strings.Join(selected, ", ")),
				Params: map[string]interface{}{"formats": selected},
			}
		}
	}

	if containsAny(command, "כל הפורמטים", "all formats") {
		return Response{
			Action: "All formats selected",
			Params: map[string]interface{}{"formats": []string{"16:9", "1:1", "9:16", "4:5"}},
		}
	}

	// Platform presets
	if containsAny(command, "אינסטגרם", "instagram") {
		return Response{
			Action: "Instagram format preset applied",
			Params: map[string]interface{}{"formats": []string{"1:1", "9:16", "4:5"}},
		}
	}
	if containsAny(command, "פייסבוק", "facebook") {
		return Response{
			Action: "Facebook format preset applied",
			Params: map[string]interface{}{"formats": []string{"16:9", "1:1", "4:5"}},
		}
	}

	return Response{
		Action: "Could not understand command. Try: 'bigger logo', 'text to top', 'only 16:9'",
		Params: map[string]interface{}{},
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
