package models

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// MediaKind classifies a stored artifact for routing and size-limit purposes.
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
	KindGeneric  MediaKind = "generic"
)

// ParseMediaKind validates a kind string from query parameters or config.
func ParseMediaKind(value string) (MediaKind, bool) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(value))) {
	case KindImage:
		return KindImage, true
	case KindVideo:
		return KindVideo, true
	case KindDocument:
		return KindDocument, true
	case KindGeneric:
		return KindGeneric, true
	default:
		return "", false
	}
}

// KindFor derives the media kind from a declared content type, falling back to
// the filename extension when the content type is missing or generic.
func KindFor(contentType, filename string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if ct == "" || ct == "application/octet-stream" {
		if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
			if guessed := mime.TypeByExtension(ext); guessed != "" {
				ct = guessed
				if idx := strings.Index(ct, ";"); idx != -1 {
					ct = strings.TrimSpace(ct[:idx])
				}
			}
		}
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	case ct == "application/pdf",
		ct == "application/msword",
		strings.HasPrefix(ct, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(ct, "application/vnd.ms-"),
		ct == "text/plain",
		ct == "text/csv":
		return KindDocument
	default:
		return KindGeneric
	}
}

// UploadJob describes one ingest request. It exists only for the duration of
// a single Store.Ingest call and is owned exclusively by that call.
type UploadJob struct {
	TempPath     string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	TargetFolder string
	BaseName     string
	ClientID     string
}

// MediaArtifact is the durable result of an ingest. Path is always relative
// to the storage root so relocating the root does not invalidate references.
type MediaArtifact struct {
	ID           string        `json:"id"`
	Path         string        `json:"path"`
	URL          string        `json:"url"`
	OriginalName string        `json:"originalName"`
	Kind         MediaKind     `json:"kind"`
	SizeBytes    int64         `json:"sizeBytes"`
	Checksum     string        `json:"checksum,omitempty"`
	Preview      *PreviewAsset `json:"preview,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// PreviewAsset references the scrub-preview sprite sheet and its cue index.
// Both paths are relative to the storage root. A PreviewAsset never outlives
// its parent video.
type PreviewAsset struct {
	SpritePath  string `json:"spritePath"`
	CuePath     string `json:"cuePath"`
	Columns     int    `json:"columns"`
	Rows        int    `json:"rows"`
	TileWidth   int    `json:"tileWidth"`
	TileHeight  int    `json:"tileHeight"`
	IntervalSec int    `json:"intervalSec"`
}
