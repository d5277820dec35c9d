// Package preview builds scrub-preview assets for stored videos: a sprite
// sheet of timeline thumbnails and a WebVTT cue index mapping time ranges to
// tile positions. Preview generation is strictly best-effort; every failure
// path returns no asset rather than an error.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/metrics"
)

const (
	// IntervalSec is the sampling interval between thumbnail tiles.
	IntervalSec = 15
	// TileWidth and TileHeight are the dimensions of one thumbnail tile.
	TileWidth  = 120
	TileHeight = 68
	// Columns is the fixed sprite grid width.
	Columns = 5

	// minDuration is the shortest video worth a scrub preview.
	minDuration = 10.0
)

// Layout describes the sprite grid computed for a video duration.
type Layout struct {
	Duration   float64
	Tiles      int
	Columns    int
	Rows       int
	TileWidth  int
	TileHeight int
	Interval   int
}

// LayoutFor computes the sprite geometry for a video of the given duration:
// one tile per started interval, arranged row-major in a fixed-width grid.
func LayoutFor(duration float64) Layout {
	tiles := int(math.Ceil(duration / IntervalSec))
	if tiles < 1 {
		tiles = 1
	}
	rows := (tiles + Columns - 1) / Columns
	return Layout{
		Duration:   duration,
		Tiles:      tiles,
		Columns:    Columns,
		Rows:       rows,
		TileWidth:  TileWidth,
		TileHeight: TileHeight,
		Interval:   IntervalSec,
	}
}

// Result references generated preview files on disk.
type Result struct {
	SpritePath string
	CuePath    string
	Layout     Layout
}

// Prober reports a video's duration in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Generator samples video frames into a sprite sheet and writes the matching
// cue index.
type Generator struct {
	binary string
	prober Prober
	logger *slog.Logger

	// run is the process seam; tests swap it for a fake.
	run func(ctx context.Context, args []string) error
}

// NewGenerator constructs a Generator using the given ffmpeg binary name
// (empty means the one on PATH).
func NewGenerator(ffmpegBinary string, prober Prober, logger *slog.Logger) *Generator {
	g := &Generator{
		binary: strings.TrimSpace(ffmpegBinary),
		prober: prober,
		logger: logger,
	}
	if g.binary == "" {
		g.binary = "ffmpeg"
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.run = g.runFFmpeg
	return g
}

// Generate probes videoPath and, when the video is long enough, writes
// "<baseName>.jpg" and "<baseName>.vtt" into outputDir. The boolean result
// reports whether assets were produced; generation failures are logged and
// reported as a plain skip so the caller's ingest never fails on a preview.
func (g *Generator) Generate(ctx context.Context, videoPath, outputDir, baseName string) (Result, bool) {
	duration, err := g.prober.Duration(ctx, videoPath)
	if err != nil {
		g.logger.Warn("preview probe failed", "video", videoPath, "error", err)
		metrics.Default().ObservePreview("failed")
		return Result{}, false
	}
	if duration < minDuration {
		g.logger.Debug("video too short for scrub preview", "video", videoPath, "duration_s", duration)
		metrics.Default().ObservePreview("skipped_short")
		return Result{}, false
	}

	layout := LayoutFor(duration)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		g.logger.Warn("prepare preview directory failed", "dir", outputDir, "error", err)
		metrics.Default().ObservePreview("failed")
		return Result{}, false
	}
	spritePath := filepath.Join(outputDir, baseName+".jpg")
	cuePath := filepath.Join(outputDir, baseName+".vtt")

	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d,scale=%d:%d,tile=%dx%d", layout.Interval, layout.TileWidth, layout.TileHeight, layout.Columns, layout.Rows),
		"-frames:v", "1",
		"-q:v", "3",
		spritePath,
	}
	if err := g.run(ctx, args); err != nil {
		g.logger.Warn("sprite generation failed", "video", videoPath, "error", err)
		metrics.Default().ObservePreview("failed")
		return Result{}, false
	}

	cues := BuildCues(layout, filepath.Base(spritePath))
	if err := os.WriteFile(cuePath, []byte(cues), 0o644); err != nil {
		g.logger.Warn("cue index write failed", "video", videoPath, "error", err)
		// The sprite alone is useless without its index.
		_ = os.Remove(spritePath)
		metrics.Default().ObservePreview("failed")
		return Result{}, false
	}

	metrics.Default().ObservePreview("generated")
	return Result{SpritePath: spritePath, CuePath: cuePath, Layout: layout}, true
}

func (g *Generator) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", g.binary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
