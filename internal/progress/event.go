package progress

import "time"

// Kind identifies the shape of a progress event payload.
type Kind string

const (
	KindProgress Kind = "progress"
	KindStage    Kind = "stage"
	KindDone     Kind = "done"
	KindError    Kind = "error"
)

// Event is a single broadcast-and-forget progress notification. Every event
// carries the client identifier so listeners can filter to the upload they
// care about; no history is retained once an event has been emitted.
type Event struct {
	ClientID   string    `json:"clientId"`
	Kind       Kind      `json:"kind"`
	Percent    float64   `json:"percent,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
