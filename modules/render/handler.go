package render

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"media-studio-server/modules/common/config"
	"media-studio-server/modules/designer"
)

const maxUploadSize = 32 << 20 // 32 MB

// Handler - HTTP surface of the render service
type Handler struct {
	service *Service
	cfg     *config.Config
	log     *zap.SugaredLogger
}

func NewHandler(service *Service, cfg *config.Config, log *zap.SugaredLogger) *Handler {
	return &Handler{service: service, cfg: cfg, log: log}
}

// RegisterRoutes - mount the render endpoints
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/preview", h.HandlePreview).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/formats", h.HandleFormats).Methods("GET")
	r.HandleFunc("/api/generated/{filename}", h.HandleDeleteAsset).Methods("DELETE")
}

// HandleGenerate - POST /api/generate (multipart form)
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	in := GenerateInput{
		Mode:          formValue(r, "mode", "from-image"),
		Prompt:        r.FormValue("prompt"),
		Title:         r.FormValue("title"),
		CTA:           r.FormValue("cta"),
		TitleFontSize: formInt(r, "title_font_size", 68),
		CTAFontSize:   formInt(r, "cta_font_size", 50),
		TextPosition:  formValue(r, "text_position", designer.TextCenter),
		TextOpacity:   formFloat(r, "text_opacity", 0.6),
		LogoEnabled:   formBool(r, "logo_enabled", true),
		LogoPosition:  formValue(r, "logo_position", designer.LogoTopRight),
		LogoSize:      formInt(r, "logo_size", 150),
		Output:        r.FormValue("output"),
	}

	formats := formValue(r, "formats", "16:9,1:1,9:16,4:5")
	for _, key := range strings.Split(formats, ",") {
		if key = strings.TrimSpace(key); key != "" {
			in.Formats = append(in.Formats, key)
		}
	}

	if data, err := readFormFile(r, "image"); err == nil {
		in.Image = data
	}
	if data, err := readFormFile(r, "logo_file"); err == nil {
		in.LogoFile = data
	}

	result, err := h.service.GenerateAssets(r.Context(), in)
	if err != nil {
		h.log.Errorf("❌ Generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	json.NewEncoder(w).Encode(result)
}

// HandlePreview - POST /api/preview {prompt}
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := h.service.PreviewImage(r.Context(), req.Prompt)
	if err != nil {
		h.log.Errorf("❌ Preview failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// HandleFormats - GET /api/formats
func (h *Handler) HandleFormats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"formats": designer.Formats,
		"total":   len(designer.Formats),
	})
}

// HandleDeleteAsset - DELETE /api/generated/{filename}
func (h *Handler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	filename := mux.Vars(r)["filename"]

	// Reject path traversal
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(h.cfg.StaticRoot, "generated", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	if err := os.Remove(path); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete: "+err.Error())
		return
	}

	h.log.Infof("🗑️  Asset deleted: %s", filename)
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "filename": filename})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func formValue(r *http.Request, name, fallback string) string {
	if v := r.FormValue(name); v != "" {
		return v
	}
	return fallback
}

func formInt(r *http.Request, name string, fallback int) int {
	if v := r.FormValue(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func formFloat(r *http.Request, name string, fallback float64) float64 {
	if v := r.FormValue(name); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func formBool(r *http.Request, name string, fallback bool) bool {
	if v := r.FormValue(name); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func readFormFile(r *http.Request, name string) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
