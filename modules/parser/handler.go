package parser

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"media-studio-server/modules/designer"
)

// Handler - HTTP surface of the command parser
type Handler struct {
	log *zap.SugaredLogger
}

func NewHandler(log *zap.SugaredLogger) *Handler {
	return &Handler{log: log}
}

// RegisterRoutes - mount the parser endpoint
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/parse-command", h.HandleParseCommand).Methods("POST", "OPTIONS")
}

type parseRequest struct {
	Command        string           `json:"command"`
	CurrentOptions designer.Options `json:"current_options"`
}

// HandleParseCommand - POST /api/parse-command
func (h *Handler) HandleParseCommand(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid request body"})
		return
	}

	resp := ParseCommand(req.Command, req.CurrentOptions)
	h.log.Infof("💬 Parsed command %q → %s", req.Command, resp.Action)
	json.NewEncoder(w).Encode(resp)
}
