package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/semaphore"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/encoder"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/metrics"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/progress"
)

// ErrInvalidFolder is returned when a job names a target folder that would
// escape the storage root.
var ErrInvalidFolder = errors.New("invalid target folder")

const (
	stageTranscode = "transcode"
	stagePreview   = "preview"
	stageStore     = "store"
)

// Store decides how each upload is persisted: small files and non-videos
// move straight into place, large videos are re-encoded first, and a failed
// encode falls back to storing the original bytes.
type Store struct {
	cfg      Config
	encoder  Encoder
	previews PreviewGenerator
	registry ArtifactRecorder
	hub      *progress.Hub
	profile  encoder.Profile
	slots    *semaphore.Weighted
	logger   *slog.Logger
}

// New builds a Store rooted at cfg.Root, creating the root and temp
// directories if needed.
func New(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	s := &Store{
		cfg:     cfg,
		profile: encoder.DefaultProfile(),
		slots:   semaphore.NewWeighted(cfg.MaxConcurrentEncodes),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Root returns the permanent storage root.
func (s *Store) Root() string { return s.cfg.Root }

// TempDir returns the staging directory for uploads in flight.
func (s *Store) TempDir() string { return s.cfg.TempDir }

// Ingest moves an uploaded file from its temp location into permanent
// storage and returns the resulting artifact. Videos above the configured
// threshold are transcoded when a mode of auto is in effect; if the encoder
// fails the original bytes are stored instead and the temp file is kept for
// inspection.
func (s *Store) Ingest(ctx context.Context, job models.UploadJob) (models.MediaArtifact, error) {
	artifact, err := s.ingest(ctx, job)
	if err != nil {
		s.hub.Error(ctx, job.ClientID, err.Error())
		return models.MediaArtifact{}, err
	}
	s.hub.Done(ctx, job.ClientID)
	return artifact, nil
}

func (s *Store) ingest(ctx context.Context, job models.UploadJob) (models.MediaArtifact, error) {
	info, err := os.Stat(job.TempPath)
	if err != nil {
		return models.MediaArtifact{}, fmt.Errorf("stat upload %s: %w", job.TempPath, err)
	}
	size := info.Size()
	if job.SizeBytes > 0 {
		size = job.SizeBytes
	}
	kind := models.KindFor(job.ContentType, job.OriginalName)

	folder, err := cleanFolder(job.TargetFolder)
	if err != nil {
		return models.MediaArtifact{}, err
	}
	destDir := filepath.Join(s.cfg.Root, filepath.FromSlash(folder))
	base, ext := baseNameFor(job)

	var (
		storedName string
		outcome    string
	)
	if s.shouldTranscode(kind, size) {
		storedName, outcome, err = s.transcode(ctx, job, destDir, base, ext)
	} else {
		storedName = finalName(base, ext)
		s.hub.Stage(ctx, job.ClientID, stageStore)
		err = MoveFile(job.TempPath, filepath.Join(destDir, storedName))
		outcome = "passthrough"
	}
	if err != nil {
		metrics.ObserveIngestOutcome(string(kind), "failed")
		return models.MediaArtifact{}, err
	}

	finalPath := filepath.Join(destDir, storedName)
	checksum, err := checksumFile(finalPath)
	if err != nil {
		s.logger.Warn("checksum failed", "path", finalPath, "error", err)
	}
	stored, err := os.Stat(finalPath)
	if err != nil {
		return models.MediaArtifact{}, fmt.Errorf("stat stored file %s: %w", finalPath, err)
	}

	relPath := path.Join(folder, storedName)
	artifact := models.MediaArtifact{
		Path:         relPath,
		URL:          s.publicURL(relPath),
		OriginalName: job.OriginalName,
		Kind:         kind,
		SizeBytes:    stored.Size(),
		Checksum:     checksum,
		CreatedAt:    time.Now().UTC(),
	}
	if kind == models.KindVideo {
		artifact.Preview = s.generatePreview(ctx, job, finalPath, storedName)
	}
	if s.registry != nil {
		saved, err := s.registry.SaveArtifact(ctx, artifact)
		if err != nil {
			return models.MediaArtifact{}, fmt.Errorf("record artifact %s: %w", relPath, err)
		}
		artifact = saved
	}
	metrics.ObserveIngestOutcome(string(kind), outcome)
	s.logger.Info("artifact stored",
		"path", relPath,
		"kind", kind,
		"outcome", outcome,
		"size_bytes", artifact.SizeBytes)
	return artifact, nil
}

func (s *Store) shouldTranscode(kind models.MediaKind, size int64) bool {
	if kind != models.KindVideo || s.encoder == nil {
		return false
	}
	if s.cfg.TranscodeMode == ModeOff {
		return false
	}
	return size >= s.cfg.MinTranscodeBytes
}

// transcode re-encodes the upload into destDir. On encoder failure it
// copies the original bytes into place instead and leaves the temp file
// untouched so the upload is never lost.
func (s *Store) transcode(ctx context.Context, job models.UploadJob, destDir, base, ext string) (string, string, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", "", fmt.Errorf("acquire encode slot: %w", err)
	}
	defer s.slots.Release(1)

	s.hub.Stage(ctx, job.ClientID, stageTranscode)
	storedName := finalName(base, ".mp4")
	outputPath := filepath.Join(destDir, storedName)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", "", fmt.Errorf("prepare destination %s: %w", destDir, err)
	}

	onProgress := func(percent float64) {
		s.hub.Progress(ctx, job.ClientID, percent)
	}
	if err := s.encoder.Encode(ctx, job.TempPath, outputPath, s.profile, onProgress); err != nil {
		s.logger.Warn("transcode failed, storing original",
			"input", job.TempPath,
			"original_name", job.OriginalName,
			"error", err)
		_ = os.Remove(outputPath)
		fallbackName := finalName(base, ext)
		if copyErr := CopyFile(job.TempPath, filepath.Join(destDir, fallbackName)); copyErr != nil {
			return "", "", fmt.Errorf("store original after failed transcode: %w", copyErr)
		}
		return fallbackName, "fallback", nil
	}
	if err := os.Remove(job.TempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove temp upload failed", "path", job.TempPath, "error", err)
	}
	return storedName, "transcoded", nil
}

// generatePreview builds the sprite and cue index for a stored video.
// Preview failures never fail the ingest.
func (s *Store) generatePreview(ctx context.Context, job models.UploadJob, videoPath, storedName string) *models.PreviewAsset {
	if s.previews == nil {
		return nil
	}
	s.hub.Stage(ctx, job.ClientID, stagePreview)
	baseName := strings.TrimSuffix(storedName, filepath.Ext(storedName))
	outputDir := filepath.Join(s.cfg.Root, previewFolder)
	result, ok := s.previews.Generate(ctx, videoPath, outputDir, baseName)
	if !ok {
		return nil
	}
	return &models.PreviewAsset{
		SpritePath:  path.Join(previewFolder, filepath.Base(result.SpritePath)),
		CuePath:     path.Join(previewFolder, filepath.Base(result.CuePath)),
		Columns:     result.Layout.Columns,
		Rows:        result.Layout.Rows,
		TileWidth:   result.Layout.TileWidth,
		TileHeight:  result.Layout.TileHeight,
		IntervalSec: result.Layout.Interval,
	}
}

// Delete removes an artifact's file and any preview assets, then drops the
// registry record. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, artifact models.MediaArtifact) error {
	abs, err := s.AbsolutePath(artifact.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", artifact.Path, err)
	}
	if artifact.Preview != nil {
		for _, rel := range []string{artifact.Preview.SpritePath, artifact.Preview.CuePath} {
			p, err := s.AbsolutePath(rel)
			if err != nil {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("remove preview asset failed", "path", rel, "error", err)
			}
		}
	}
	if s.registry != nil && artifact.ID != "" {
		if err := s.registry.DeleteArtifact(ctx, artifact.ID); err != nil {
			return fmt.Errorf("delete artifact record %s: %w", artifact.ID, err)
		}
	}
	return nil
}

// AbsolutePath resolves a stored relative path against the storage root,
// rejecting anything that would escape it.
func (s *Store) AbsolutePath(rel string) (string, error) {
	cleaned, err := cleanFolder(rel)
	if err != nil || cleaned == "" {
		return "", ErrInvalidFolder
	}
	return filepath.Join(s.cfg.Root, filepath.FromSlash(cleaned)), nil
}

func (s *Store) publicURL(relPath string) string {
	if s.cfg.PublicBaseURL == "" {
		return "/" + relPath
	}
	return s.cfg.PublicBaseURL + "/" + relPath
}

// cleanFolder normalizes a slash-separated storage path and rejects
// absolute paths or traversal outside the root.
func cleanFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return "", nil
	}
	cleaned := path.Clean(folder)
	if cleaned == "." {
		return "", nil
	}
	if strings.HasPrefix(cleaned, "../") || cleaned == ".." || path.IsAbs(cleaned) {
		return "", ErrInvalidFolder
	}
	return cleaned, nil
}

func checksumFile(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
