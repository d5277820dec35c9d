package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
)

type dataset struct {
	Artifacts map[string]models.MediaArtifact `json:"artifacts"`
}

// JSONRepository keeps the artifact catalogue in memory and mirrors every
// mutation to a JSON file so restarts keep their history. Suitable for a
// single-process deployment; use the Postgres repository beyond that.
type JSONRepository struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

// NewJSONRepository loads (or creates) the catalogue file at path.
func NewJSONRepository(path string) (*JSONRepository, error) {
	repo := &JSONRepository{
		filePath: path,
		data:     dataset{Artifacts: make(map[string]models.MediaArtifact)},
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *JSONRepository) load() error {
	file, err := os.Open(r.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open catalogue %s: %w", r.filePath, err)
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read catalogue %s: %w", r.filePath, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, &r.data); err != nil {
		return fmt.Errorf("decode catalogue %s: %w", r.filePath, err)
	}
	if r.data.Artifacts == nil {
		r.data.Artifacts = make(map[string]models.MediaArtifact)
	}
	return nil
}

func (r *JSONRepository) persistLocked() error {
	if r.persistOverride != nil {
		return r.persistOverride(r.data)
	}
	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare catalogue dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "catalogue-*.json")
	if err != nil {
		return fmt.Errorf("create catalogue temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r.data); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode catalogue: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close catalogue temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace catalogue: %w", err)
	}
	return nil
}

// SaveArtifact implements Repository.
func (r *JSONRepository) SaveArtifact(_ context.Context, artifact models.MediaArtifact) (models.MediaArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if artifact.ID == "" {
		id, err := generateID()
		if err != nil {
			return models.MediaArtifact{}, err
		}
		artifact.ID = id
	}
	previous, existed := r.data.Artifacts[artifact.ID]
	r.data.Artifacts[artifact.ID] = artifact
	if err := r.persistLocked(); err != nil {
		if existed {
			r.data.Artifacts[artifact.ID] = previous
		} else {
			delete(r.data.Artifacts, artifact.ID)
		}
		return models.MediaArtifact{}, err
	}
	return artifact, nil
}

// GetArtifact implements Repository.
func (r *JSONRepository) GetArtifact(_ context.Context, id string) (models.MediaArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	artifact, ok := r.data.Artifacts[id]
	if !ok {
		return models.MediaArtifact{}, ErrNotFound
	}
	return artifact, nil
}

// FindByPath implements Repository.
func (r *JSONRepository) FindByPath(_ context.Context, path string) (models.MediaArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, artifact := range r.data.Artifacts {
		if artifact.Path == path {
			return artifact, nil
		}
	}
	return models.MediaArtifact{}, ErrNotFound
}

// ListArtifacts implements Repository.
func (r *JSONRepository) ListArtifacts(_ context.Context, kind models.MediaKind, limit int) ([]models.MediaArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	artifacts := make([]models.MediaArtifact, 0, len(r.data.Artifacts))
	for _, artifact := range r.data.Artifacts {
		if kind != "" && artifact.Kind != kind {
			continue
		}
		artifacts = append(artifacts, artifact)
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].ID < artifacts[j].ID
		}
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	if limit > 0 && len(artifacts) > limit {
		artifacts = artifacts[:limit]
	}
	return artifacts, nil
}

// DeleteArtifact implements Repository.
func (r *JSONRepository) DeleteArtifact(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, ok := r.data.Artifacts[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.data.Artifacts, id)
	if err := r.persistLocked(); err != nil {
		r.data.Artifacts[id] = previous
		return err
	}
	return nil
}

// Close implements Repository. The JSON repository holds no external
// resources.
func (r *JSONRepository) Close(context.Context) error { return nil }
