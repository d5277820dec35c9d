package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/metrics"
)

// Hub is the ingest pipeline's view of the progress channel. It stamps and
// publishes events on the configured queue and hands out subscriptions to
// delivery endpoints. Publish failures are logged and otherwise ignored;
// progress must never fail an upload. A nil *Hub discards events, so
// callers without a hub can emit unconditionally.
type Hub struct {
	queue  Queue
	logger *slog.Logger
}

// NewHub wraps the provided queue. A nil queue falls back to an in-memory one.
func NewHub(queue Queue, logger *slog.Logger) *Hub {
	if queue == nil {
		queue = NewMemoryQueue(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{queue: queue, logger: logger}
}

// Subscribe attaches a new listener to the event stream.
func (h *Hub) Subscribe() Subscription {
	return h.queue.Subscribe()
}

// Progress broadcasts a percent update for the given client.
func (h *Hub) Progress(ctx context.Context, clientID string, percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	h.emit(ctx, Event{ClientID: clientID, Kind: KindProgress, Percent: percent})
}

// Stage broadcasts a named pipeline phase for the given client.
func (h *Hub) Stage(ctx context.Context, clientID, stage string) {
	h.emit(ctx, Event{ClientID: clientID, Kind: KindStage, Stage: stage})
}

// Done broadcasts completion for the given client.
func (h *Hub) Done(ctx context.Context, clientID string) {
	h.emit(ctx, Event{ClientID: clientID, Kind: KindDone})
}

// Error broadcasts a failure message for the given client.
func (h *Hub) Error(ctx context.Context, clientID, message string) {
	h.emit(ctx, Event{ClientID: clientID, Kind: KindError, Message: message})
}

func (h *Hub) emit(ctx context.Context, event Event) {
	if h == nil || event.ClientID == "" {
		// No listener can correlate an anonymous event.
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := h.queue.Publish(ctx, event); err != nil {
		h.logger.Warn("failed to publish progress event", "client_id", event.ClientID, "kind", event.Kind, "error", err)
		return
	}
	metrics.Default().ObserveProgressEvent(string(event.Kind))
}
