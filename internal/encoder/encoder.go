// Package encoder wraps the external ffmpeg/ffprobe binaries. The Runner
// drives one encode as a blocking call on the calling goroutine, translating
// ffmpeg's machine-readable progress stream into normalized 0-100 percent
// callbacks.
package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/metrics"
)

// ProgressFunc receives normalized encode progress in the range [0,100].
// Callbacks arrive from a single goroutine in emission order.
type ProgressFunc func(percent float64)

// ProcessError reports an encoder process that exited uncleanly. Detail holds
// the tail of the process's stderr.
type ProcessError struct {
	Err    error
	Detail string
}

func (e *ProcessError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("encoder process failed: %v", e.Err)
	}
	return fmt.Sprintf("encoder process failed: %v: %s", e.Err, e.Detail)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Runner launches ffmpeg encodes.
type Runner struct {
	binary string
	prober *Prober
	logger *slog.Logger
}

// NewRunner constructs a Runner. Empty binary names default to the tools on
// PATH; a nil logger falls back to slog.Default.
func NewRunner(ffmpegBinary string, prober *Prober, logger *slog.Logger) *Runner {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if prober == nil {
		prober = NewProber("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{binary: ffmpegBinary, prober: prober, logger: logger}
}

// Prober exposes the runner's ffprobe wrapper for callers that only need
// duration inspection.
func (r *Runner) Prober() *Prober {
	return r.prober
}

// Encode transcodes inputPath into outputPath using the given profile,
// blocking until the process exits. Progress percentages are derived from
// ffmpeg's out_time against the probed input duration and clamped to [0,100];
// onProgress may be nil. A non-zero exit is returned as a *ProcessError.
func (r *Runner) Encode(ctx context.Context, inputPath, outputPath string, profile Profile, onProgress ProgressFunc) error {
	var duration float64
	if probed, err := r.prober.Duration(ctx, inputPath); err == nil {
		duration = probed
	} else {
		// Without a duration the encode still runs; progress is simply
		// not reported until completion.
		r.logger.Warn("probe before encode failed", "input", inputPath, "error", err)
	}

	cmd := exec.CommandContext(ctx, r.binary, profile.args(inputPath, outputPath)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach encoder stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &tailWriter{limit: 4096, buf: &stderr}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	metrics.Default().EncodeStarted()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	lastPercent := -1.0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		seconds, ok := parseProgressLine(line)
		if !ok || duration <= 0 {
			continue
		}
		percent := seconds / duration * 100
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		// ffmpeg repeats out_time across progress blocks; only forward
		// movement is reported.
		if percent <= lastPercent {
			continue
		}
		lastPercent = percent
		if onProgress != nil {
			onProgress(percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		metrics.Default().EncodeFailed()
		return &ProcessError{Err: err, Detail: strings.TrimSpace(stderr.String())}
	}
	metrics.Default().EncodeCompleted()
	if onProgress != nil && lastPercent < 100 {
		onProgress(100)
	}
	return nil
}

// parseProgressLine extracts elapsed output seconds from one line of
// ffmpeg's key=value progress stream.
func parseProgressLine(line string) (float64, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return 0, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds in current ffmpeg releases.
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil || micros < 0 {
			return 0, false
		}
		return float64(micros) / 1e6, true
	case "out_time":
		return parseClockTime(value)
	default:
		return 0, false
	}
}

func parseClockTime(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	total := hours*3600 + minutes*60 + seconds
	if total < 0 {
		return 0, false
	}
	return total, true
}

// tailWriter keeps only the last limit bytes written so a chatty encoder
// cannot grow the error detail without bound.
type tailWriter struct {
	limit int
	buf   *bytes.Buffer
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		excess := w.buf.Len() - w.limit
		w.buf.Next(excess)
	}
	return len(p), nil
}
