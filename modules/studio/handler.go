package studio

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"media-studio-server/modules/assetreq"
	"media-studio-server/modules/designer"
	"media-studio-server/modules/download"
	"media-studio-server/modules/hub"
	"media-studio-server/modules/library"
	"media-studio-server/modules/workflow"
)

const maxUploadSize = 32 << 20

// Handler - HTTP surface of the studio engine
type Handler struct {
	manager   *Manager
	hub       *hub.Hub
	downloads *download.Queue
	log       *zap.SugaredLogger
}

func NewHandler(manager *Manager, h *hub.Hub, downloads *download.Queue, log *zap.SugaredLogger) *Handler {
	return &Handler{manager: manager, hub: h, downloads: downloads, log: log}
}

// RegisterRoutes - mount the studio endpoints
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/sessions", h.HandleCreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}", h.HandleGetSession).Methods("GET")
	r.HandleFunc("/api/sessions/{id}", h.HandleCloseSession).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/mode", h.HandleChooseMode).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/source", h.HandleSetSource).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/prompt", h.HandleSetPrompt).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/options", h.HandleUpdateOptions).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/back", h.HandleBack).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/reset", h.HandleReset).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/command", h.HandleCommand).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/history", h.HandleOpenHistory).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/history/{itemId}/restore", h.HandleRestoreHistory).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/downloads", h.HandleDownload).Methods("POST", "OPTIONS")

	r.HandleFunc("/api/logos", h.HandleListLogos).Methods("GET")
	r.HandleFunc("/api/logos", h.HandleAddLogo).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/logos/{id}/select", h.HandleSelectLogo).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/logos/{id}", h.HandleDeleteLogo).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/api/history", h.HandleListHistory).Methods("GET")
	r.HandleFunc("/api/history/{id}", h.HandleGetHistory).Methods("GET")
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl := h.manager.CreateSession()
	writeJSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.CloseSession(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) HandleChooseMode(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ctrl.ChooseMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleSetSource(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image: "+err.Error())
		return
	}
	if err := ctrl.SetSource(data, header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleSetPrompt(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ctrl.SetPrompt(r.Context(), req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch designer.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	options := ctrl.UpdateOptions(patch)
	writeJSON(w, http.StatusOK, map[string]interface{}{"options": options})
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	// Started is only announced once the guards have passed; a rejected
	// request never reaches subscribers.
	result, err := ctrl.Generate(r.Context(), func() {
		h.hub.Publish(id, hub.EventGenerateStarted, nil)
	})
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrSessionReset):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, assetreq.ErrNoFormats),
			errors.Is(err, assetreq.ErrNoSourceImage),
			errors.Is(err, workflow.ErrNoSource):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.hub.Publish(id, hub.EventGenerateFailed, map[string]string{"error": err.Error()})
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	h.hub.Publish(id, hub.EventGenerateCompleted, map[string]int{"totalAssets": len(result.Assets)})
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl.BackToEdit()
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl.Reset()
	h.hub.Publish(mux.Vars(r)["id"], hub.EventSessionReset, nil)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, options, err := ctrl.ApplyCommand(r.Context(), req.Command)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":  action,
		"options": options,
	})
}

func (h *Handler) HandleOpenHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl.OpenHistory()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": ctrl.Snapshot(),
		"items":   h.manager.Library().History(),
	})
}

func (h *Handler) HandleRestoreHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	itemID := mux.Vars(r)["itemId"]
	if err := ctrl.RestoreHistory(itemID); err != nil {
		if errors.Is(err, library.ErrHistoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	var req struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	task := download.Task{
		SessionID: mux.Vars(r)["id"],
		URL:       req.URL,
		Filename:  req.Filename,
	}
	if err := h.downloads.Enqueue(task); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "filename": req.Filename})
}

func (h *Handler) HandleListLogos(w http.ResponseWriter, r *http.Request) {
	lib := h.manager.Library()
	var selectedID string
	if selected := lib.SelectedLogo(); selected != nil {
		selectedID = selected.ID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logos":    lib.Logos(),
		"selected": selectedID,
	})
}

func (h *Handler) HandleAddLogo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing logo file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read logo: "+err.Error())
		return
	}
	logo, err := h.manager.Library().AddLogo(r.Context(), data, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, logo)
}

func (h *Handler) HandleSelectLogo(w http.ResponseWriter, r *http.Request) {
	logo, err := h.manager.Library().SelectLogo(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logo)
}

func (h *Handler) HandleDeleteLogo(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Library().DeleteLogo(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	items := h.manager.Library().History()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	item, err := h.manager.Library().GetHistory(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*workflow.Controller, bool) {
	ctrl, err := h.manager.GetSession(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ctrl, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
