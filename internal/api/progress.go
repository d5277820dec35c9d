package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const progressHeartbeat = 15 * time.Second

// Progress handles GET /api/progress?client=ID as a Server-Sent Events
// stream. Only events addressed to the requested client are forwarded; the
// stream stays open until the client disconnects.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client"))
	if clientID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("client is required"))
		return
	}
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("progress delivery unavailable"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	sub := h.Hub.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(progressHeartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.Events():
			if !open {
				return
			}
			if event.ClientID != clientID {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.Logger.Warn("encode progress event", "client_id", clientID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
