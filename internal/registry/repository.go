package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
)

// ErrNotFound is returned when no artifact matches the requested ID.
var ErrNotFound = errors.New("artifact not found")

// Repository persists the catalogue of stored artifacts.
type Repository interface {
	// SaveArtifact stores the artifact, assigning an ID when it has none,
	// and returns the stored record.
	SaveArtifact(ctx context.Context, artifact models.MediaArtifact) (models.MediaArtifact, error)
	// GetArtifact looks up a single artifact by ID.
	GetArtifact(ctx context.Context, id string) (models.MediaArtifact, error)
	// FindByPath looks up an artifact by its stored relative path.
	FindByPath(ctx context.Context, path string) (models.MediaArtifact, error)
	// ListArtifacts returns artifacts newest first, optionally filtered by
	// kind. A non-positive limit returns everything.
	ListArtifacts(ctx context.Context, kind models.MediaKind, limit int) ([]models.MediaArtifact, error)
	// DeleteArtifact removes the record for the given ID.
	DeleteArtifact(ctx context.Context, id string) error
	// Close releases any backing resources.
	Close(ctx context.Context) error
}

func generateID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
