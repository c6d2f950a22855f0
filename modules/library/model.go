package library

import (
	"time"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/designer"
)

// Logo - an uploaded brand logo. SourceBlob is session-only: it is never
// persisted, so after a reload only Preview survives and the binary is
// reconstructed from it on demand (see Store.LogoBinary).
type Logo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Preview    string `json:"preview"` // self-contained data URL, always present
	SourceBlob []byte `json:"-"`
}

// HistoryItem - the immutable record of one successful generation.
// Settings are a deep snapshot; mutating the live options later must never
// change a stored entry.
type HistoryItem struct {
	ID          string                    `json:"id"`
	Timestamp   time.Time                 `json:"timestamp"`
	Mode        string                    `json:"mode"`
	SourceImage string                    `json:"sourceImage,omitempty"`
	Prompt      string                    `json:"prompt,omitempty"`
	Settings    designer.Options          `json:"settings"`
	Result      assetreq.GenerateResponse `json:"result"`
}

// persistedLogo - the flat-store form of a Logo. The raw binary is
// intentionally excluded; Preview alone must be enough to rebuild it.
type persistedLogo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Preview string `json:"preview"`
}
