package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/metrics"
)

const (
	// DefaultRetention is how long abandoned temp files are kept.
	DefaultRetention = 24 * time.Hour
	// DefaultSweepInterval is how often the sweeper runs.
	DefaultSweepInterval = time.Hour
)

// Sweeper removes stale entries from the upload staging directory. Uploads
// that finished ingest delete their own temp files; anything still present
// after the retention window was abandoned mid-upload or deliberately kept
// after a failed transcode.
type Sweeper struct {
	dir       string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper builds a sweeper over dir. A non-positive retention falls back
// to the default.
func NewSweeper(dir string, retention time.Duration, logger *slog.Logger) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{dir: dir, retention: retention, logger: logger, now: time.Now}
}

// Sweep runs a single pass, removing every entry older than the retention
// window. Entries that cannot be inspected or removed are logged and
// skipped; one bad entry never stops the pass.
func (s *Sweeper) Sweep() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read temp dir %s: %w", s.dir, err)
	}
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		fullPath := filepath.Join(s.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("sweep stat failed", "path", fullPath, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(fullPath); err != nil {
			s.logger.Warn("sweep remove failed", "path", fullPath, "error", err)
			continue
		}
		removed++
	}
	metrics.ObserveSweep(removed)
	if removed > 0 {
		s.logger.Info("temp sweep complete", "removed", removed, "retention", s.retention)
	}
	return nil
}
