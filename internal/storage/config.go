package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/encoder"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/preview"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/progress"
)

// TranscodeMode selects how video uploads are handled.
type TranscodeMode string

const (
	// ModeAuto transcodes videos at or above the size threshold.
	ModeAuto TranscodeMode = "auto"
	// ModeOff stores every upload as-is.
	ModeOff TranscodeMode = "off"
)

// ParseTranscodeMode validates a mode string from config.
func ParseTranscodeMode(value string) (TranscodeMode, error) {
	switch TranscodeMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeAuto, "":
		return ModeAuto, nil
	case ModeOff:
		return ModeOff, nil
	default:
		return "", fmt.Errorf("unknown transcode mode %q", value)
	}
}

const (
	// DefaultMinTranscodeBytes is the size at which videos are considered
	// heavy enough to re-encode.
	DefaultMinTranscodeBytes int64 = 150 << 20
	// DefaultMaxConcurrentEncodes bounds simultaneous ffmpeg processes.
	DefaultMaxConcurrentEncodes int64 = 2

	previewFolder = "previews"
)

// Config carries the orchestrator settings resolved from flags and env.
type Config struct {
	Root                 string
	TempDir              string
	PublicBaseURL        string
	TranscodeMode        TranscodeMode
	MinTranscodeBytes    int64
	MaxConcurrentEncodes int64
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("storage root is required")
	}
	if strings.TrimSpace(c.TempDir) == "" {
		return fmt.Errorf("temp dir is required")
	}
	if c.TranscodeMode == "" {
		c.TranscodeMode = ModeAuto
	}
	if c.TranscodeMode != ModeAuto && c.TranscodeMode != ModeOff {
		return fmt.Errorf("unknown transcode mode %q", c.TranscodeMode)
	}
	if c.MinTranscodeBytes <= 0 {
		c.MinTranscodeBytes = DefaultMinTranscodeBytes
	}
	if c.MaxConcurrentEncodes <= 0 {
		c.MaxConcurrentEncodes = DefaultMaxConcurrentEncodes
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}

// Encoder re-encodes a video file, reporting progress as it goes.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputPath string, profile encoder.Profile, onProgress encoder.ProgressFunc) error
}

// PreviewGenerator produces a sprite sheet and cue index for a video.
type PreviewGenerator interface {
	Generate(ctx context.Context, videoPath, outputDir, baseName string) (preview.Result, bool)
}

// ArtifactRecorder persists artifacts as they are ingested.
type ArtifactRecorder interface {
	SaveArtifact(ctx context.Context, artifact models.MediaArtifact) (models.MediaArtifact, error)
	DeleteArtifact(ctx context.Context, id string) error
}

// Option tweaks the store during construction.
type Option func(*Store)

// WithEncoder supplies the video encoder. Without one every video is
// stored as uploaded.
func WithEncoder(enc Encoder) Option {
	return func(s *Store) { s.encoder = enc }
}

// WithPreviewGenerator supplies the sprite generator for videos.
func WithPreviewGenerator(gen PreviewGenerator) Option {
	return func(s *Store) { s.previews = gen }
}

// WithRegistry supplies the artifact repository.
func WithRegistry(rec ArtifactRecorder) Option {
	return func(s *Store) { s.registry = rec }
}

// WithProgressHub supplies the hub used for per-client progress events.
func WithProgressHub(hub *progress.Hub) Option {
	return func(s *Store) { s.hub = hub }
}

// WithEncodeProfile overrides the default encoding profile.
func WithEncodeProfile(profile encoder.Profile) Option {
	return func(s *Store) { s.profile = profile }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}
