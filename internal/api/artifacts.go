package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/registry"
)

// Artifacts handles GET /api/artifacts with optional kind and limit filters.
func (h *Handler) Artifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	if h.Registry == nil {
		writeJSON(w, http.StatusOK, []artifactResponse{})
		return
	}
	var kind models.MediaKind
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		parsed, ok := models.ParseMediaKind(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown kind %q", raw))
			return
		}
		kind = parsed
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	artifacts, err := h.Registry.ListArtifacts(r.Context(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list artifacts: %w", err))
		return
	}
	response := make([]artifactResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		response = append(response, newArtifactResponse(artifact))
	}
	writeJSON(w, http.StatusOK, response)
}

// ArtifactByID handles GET and DELETE on /api/artifacts/{id}. Deleting an
// artifact removes its file and preview assets along with the record.
func (h *Handler) ArtifactByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/artifacts/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("artifact id missing"))
		return
	}
	if h.Registry == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("artifact %s not found", id))
		return
	}
	artifact, err := h.Registry.GetArtifact(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("artifact %s not found", id))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("load artifact: %w", err))
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newArtifactResponse(artifact))
	case http.MethodDelete:
		if err := h.Store.Delete(r.Context(), artifact); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("delete artifact: %w", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
	}
}
