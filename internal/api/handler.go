package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/progress"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/registry"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/storage"
)

// Handler exposes the media pipeline over HTTP: multipart uploads, byte-range
// streaming of stored files, the artifact catalogue, and progress delivery.
type Handler struct {
	Store    *storage.Store
	Registry registry.Repository
	Hub      *progress.Hub
	Logger   *slog.Logger
}

func NewHandler(store *storage.Store, repo registry.Repository, hub *progress.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Registry: repo, Hub: hub, Logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// WriteError is an exported helper for returning JSON API errors.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, err)
}

func errMethodNotAllowed(method string) error {
	return fmt.Errorf("method %s not allowed", method)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
