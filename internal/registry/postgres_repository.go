package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
)

// PostgresConfig describes how the repository initialises its Postgres
// connection pool.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a Postgres-backed artifact catalogue and
// ensures its schema exists.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	repo := &postgresRepository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

const artifactsSchema = `
CREATE TABLE IF NOT EXISTS media_artifacts (
    id            TEXT PRIMARY KEY,
    path          TEXT NOT NULL UNIQUE,
    url           TEXT NOT NULL,
    original_name TEXT NOT NULL,
    kind          TEXT NOT NULL,
    size_bytes    BIGINT NOT NULL,
    checksum      TEXT NOT NULL DEFAULT '',
    preview       JSONB,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS media_artifacts_kind_created_idx
    ON media_artifacts (kind, created_at DESC);
`

func (r *postgresRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, artifactsSchema); err != nil {
		return fmt.Errorf("ensure artifacts schema: %w", err)
	}
	return nil
}

// SaveArtifact implements Repository.
func (r *postgresRepository) SaveArtifact(ctx context.Context, artifact models.MediaArtifact) (models.MediaArtifact, error) {
	if artifact.ID == "" {
		id, err := generateID()
		if err != nil {
			return models.MediaArtifact{}, err
		}
		artifact.ID = id
	}
	var preview []byte
	if artifact.Preview != nil {
		encoded, err := json.Marshal(artifact.Preview)
		if err != nil {
			return models.MediaArtifact{}, fmt.Errorf("encode preview: %w", err)
		}
		preview = encoded
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO media_artifacts (id, path, url, original_name, kind, size_bytes, checksum, preview, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    path = EXCLUDED.path,
    url = EXCLUDED.url,
    original_name = EXCLUDED.original_name,
    kind = EXCLUDED.kind,
    size_bytes = EXCLUDED.size_bytes,
    checksum = EXCLUDED.checksum,
    preview = EXCLUDED.preview,
    created_at = EXCLUDED.created_at`,
		artifact.ID, artifact.Path, artifact.URL, artifact.OriginalName,
		string(artifact.Kind), artifact.SizeBytes, artifact.Checksum, preview, artifact.CreatedAt)
	if err != nil {
		return models.MediaArtifact{}, fmt.Errorf("save artifact %s: %w", artifact.ID, err)
	}
	return artifact, nil
}

// GetArtifact implements Repository.
func (r *postgresRepository) GetArtifact(ctx context.Context, id string) (models.MediaArtifact, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, path, url, original_name, kind, size_bytes, checksum, preview, created_at
FROM media_artifacts WHERE id = $1`, id)
	artifact, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MediaArtifact{}, ErrNotFound
	}
	if err != nil {
		return models.MediaArtifact{}, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return artifact, nil
}

// FindByPath implements Repository.
func (r *postgresRepository) FindByPath(ctx context.Context, path string) (models.MediaArtifact, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, path, url, original_name, kind, size_bytes, checksum, preview, created_at
FROM media_artifacts WHERE path = $1`, path)
	artifact, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MediaArtifact{}, ErrNotFound
	}
	if err != nil {
		return models.MediaArtifact{}, fmt.Errorf("find artifact by path %s: %w", path, err)
	}
	return artifact, nil
}

// ListArtifacts implements Repository.
func (r *postgresRepository) ListArtifacts(ctx context.Context, kind models.MediaKind, limit int) ([]models.MediaArtifact, error) {
	query := `
SELECT id, path, url, original_name, kind, size_bytes, checksum, preview, created_at
FROM media_artifacts`
	args := make([]any, 0, 2)
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []models.MediaArtifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

// DeleteArtifact implements Repository.
func (r *postgresRepository) DeleteArtifact(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM media_artifacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Repository.
func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func scanArtifact(row pgx.Row) (models.MediaArtifact, error) {
	var (
		artifact models.MediaArtifact
		kind     string
		preview  []byte
	)
	if err := row.Scan(&artifact.ID, &artifact.Path, &artifact.URL, &artifact.OriginalName,
		&kind, &artifact.SizeBytes, &artifact.Checksum, &preview, &artifact.CreatedAt); err != nil {
		return models.MediaArtifact{}, err
	}
	artifact.Kind = models.MediaKind(kind)
	if len(preview) > 0 {
		var asset models.PreviewAsset
		if err := json.Unmarshal(preview, &asset); err != nil {
			return models.MediaArtifact{}, fmt.Errorf("decode preview: %w", err)
		}
		artifact.Preview = &asset
	}
	return artifact, nil
}
