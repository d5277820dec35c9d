package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// IngestOutcomeLabel identifies how an ingest completed, keyed by the media
// kind that was processed and the policy branch that produced the artifact.
type IngestOutcomeLabel struct {
	Kind    string
	Outcome string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP
// requests, ingest outcomes, encoder activity, preview generation, progress
// events, and cleanup sweeps. It coordinates concurrent writers via a RWMutex
// while exposing a thread-safe gauge for active encode tracking.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	ingestOutcomes  map[IngestOutcomeLabel]uint64
	previewEvents   map[string]uint64
	progressEvents  map[string]uint64
	sweeperRemovals uint64
	sweeperRuns     uint64
	activeEncodes   atomic.Int64
	encodeEvents    map[string]uint64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		ingestOutcomes:  make(map[IngestOutcomeLabel]uint64),
		previewEvents:   make(map[string]uint64),
		progressEvents:  make(map[string]uint64),
		encodeEvents:    make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveIngestOutcome records how an ingest concluded: "passthrough",
// "transcoded", "fallback", or "failed", labelled by media kind.
func (r *Recorder) ObserveIngestOutcome(kind, outcome string) {
	label := IngestOutcomeLabel{Kind: normalizeName(kind), Outcome: normalizeName(outcome)}
	r.mu.Lock()
	r.ingestOutcomes[label]++
	r.mu.Unlock()
}

// EncodeStarted records the start of an encoder process and increments the
// active encode gauge.
func (r *Recorder) EncodeStarted() {
	r.incrementEncodeEvent("start")
	r.activeEncodes.Add(1)
}

// EncodeCompleted records a clean encoder exit and decrements the gauge.
func (r *Recorder) EncodeCompleted() {
	r.incrementEncodeEvent("complete")
	r.decrementGauge(&r.activeEncodes)
}

// EncodeFailed records an encoder failure and decrements the gauge, guarding
// against negative counts if the process never started.
func (r *Recorder) EncodeFailed() {
	r.incrementEncodeEvent("fail")
	r.decrementGauge(&r.activeEncodes)
}

func (r *Recorder) incrementEncodeEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.encodeEvents[normalized]++
	r.mu.Unlock()
}

// ObservePreview records a preview generation outcome: "generated",
// "skipped_short", or "failed".
func (r *Recorder) ObservePreview(outcome string) {
	normalized := normalizeName(outcome)
	r.mu.Lock()
	r.previewEvents[normalized]++
	r.mu.Unlock()
}

// ObserveProgressEvent records an emitted progress event by kind.
func (r *Recorder) ObserveProgressEvent(kind string) {
	normalized := normalizeName(kind)
	r.mu.Lock()
	r.progressEvents[normalized]++
	r.mu.Unlock()
}

// ObserveSweep records one sweeper pass and the number of entries it removed.
func (r *Recorder) ObserveSweep(removed int) {
	r.mu.Lock()
	r.sweeperRuns++
	if removed > 0 {
		r.sweeperRemovals += uint64(removed)
	}
	r.mu.Unlock()
}

// ActiveEncodes exposes the current gauge of concurrently running encoder
// processes.
func (r *Recorder) ActiveEncodes() int64 {
	return r.activeEncodes.Load()
}

// IngestOutcomeCounts returns a copy of the ingest outcome counters for
// testing and reporting purposes.
func (r *Recorder) IngestOutcomeCounts() map[IngestOutcomeLabel]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[IngestOutcomeLabel]uint64, len(r.ingestOutcomes))
	for k, v := range r.ingestOutcomes {
		out[k] = v
	}
	return out
}

// SweepCounts returns the number of sweeper passes and total removed entries.
func (r *Recorder) SweepCounts() (runs, removed uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sweeperRuns, r.sweeperRemovals
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.ingestOutcomes = make(map[IngestOutcomeLabel]uint64)
	r.previewEvents = make(map[string]uint64)
	r.progressEvents = make(map[string]uint64)
	r.encodeEvents = make(map[string]uint64)
	r.sweeperRemovals = 0
	r.sweeperRuns = 0
	r.activeEncodes.Store(0)
}

// Handler exposes the recorder in Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	ingestLabels := r.sortedIngestOutcomes()
	encodeEvents := sortedKeys(r.encodeEvents)
	previewEvents := sortedKeys(r.previewEvents)
	progressEvents := sortedKeys(r.progressEvents)

	fmt.Fprintln(w, "# HELP media_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE media_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "media_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP media_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE media_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "media_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP media_ingest_outcomes_total Ingest results by media kind and policy branch")
	fmt.Fprintln(w, "# TYPE media_ingest_outcomes_total counter")
	for _, label := range ingestLabels {
		count := r.ingestOutcomes[label]
		fmt.Fprintf(w, "media_ingest_outcomes_total{kind=\"%s\",outcome=\"%s\"} %d\n", label.Kind, label.Outcome, count)
	}

	fmt.Fprintln(w, "# HELP media_encode_events_total Encoder process events by status")
	fmt.Fprintln(w, "# TYPE media_encode_events_total counter")
	for _, event := range encodeEvents {
		fmt.Fprintf(w, "media_encode_events_total{status=\"%s\"} %d\n", event, r.encodeEvents[event])
	}

	fmt.Fprintln(w, "# HELP media_active_encodes Current number of running encoder processes")
	fmt.Fprintln(w, "# TYPE media_active_encodes gauge")
	fmt.Fprintf(w, "media_active_encodes %d\n", r.activeEncodes.Load())

	fmt.Fprintln(w, "# HELP media_preview_events_total Preview generation outcomes")
	fmt.Fprintln(w, "# TYPE media_preview_events_total counter")
	for _, event := range previewEvents {
		fmt.Fprintf(w, "media_preview_events_total{outcome=\"%s\"} %d\n", event, r.previewEvents[event])
	}

	fmt.Fprintln(w, "# HELP media_progress_events_total Progress events emitted by kind")
	fmt.Fprintln(w, "# TYPE media_progress_events_total counter")
	for _, event := range progressEvents {
		fmt.Fprintf(w, "media_progress_events_total{kind=\"%s\"} %d\n", event, r.progressEvents[event])
	}

	fmt.Fprintln(w, "# HELP media_sweeper_runs_total Cleanup sweeper passes completed")
	fmt.Fprintln(w, "# TYPE media_sweeper_runs_total counter")
	fmt.Fprintf(w, "media_sweeper_runs_total %d\n", r.sweeperRuns)

	fmt.Fprintln(w, "# HELP media_sweeper_removed_total Temporary entries removed by the cleanup sweeper")
	fmt.Fprintln(w, "# TYPE media_sweeper_removed_total counter")
	fmt.Fprintf(w, "media_sweeper_removed_total %d\n", r.sweeperRemovals)
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedIngestOutcomes() []IngestOutcomeLabel {
	labels := make([]IngestOutcomeLabel, 0, len(r.ingestOutcomes))
	for label := range r.ingestOutcomes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Kind != labels[j].Kind {
			return labels[i].Kind < labels[j].Kind
		}
		return labels[i].Outcome < labels[j].Outcome
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveIngestOutcome is a helper on the default recorder.
func ObserveIngestOutcome(kind, outcome string) {
	defaultRecorder.ObserveIngestOutcome(kind, outcome)
}

// ObservePreview is a helper on the default recorder.
func ObservePreview(outcome string) {
	defaultRecorder.ObservePreview(outcome)
}

// ObserveProgressEvent is a helper on the default recorder.
func ObserveProgressEvent(kind string) {
	defaultRecorder.ObserveProgressEvent(kind)
}

// ObserveSweep is a helper on the default recorder.
func ObserveSweep(removed int) {
	defaultRecorder.ObserveSweep(removed)
}

// Handler exposes the default recorder.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
