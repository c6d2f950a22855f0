package assetreq

import "time"

// Asset - one rendered output, authored by the render service
type Asset struct {
	Platform string `json:"platform"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Metadata - render response metadata
type Metadata struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Mode         string            `json:"mode"`
	Prompt       string            `json:"prompt,omitempty"`
	ParsedPrompt map[string]string `json:"parsed_prompt,omitempty"`
	TotalAssets  int               `json:"total_assets"`
}

// GenerateResponse - the full render service response
type GenerateResponse struct {
	Status   string   `json:"status"`
	Assets   []Asset  `json:"assets"`
	Metadata Metadata `json:"metadata"`
}

// errorBody - structured error envelope the render service emits
type errorBody struct {
	Error  string `json:"error,omitempty"`
	Detail struct {
		Error   string `json:"error,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"detail,omitempty"`
}
