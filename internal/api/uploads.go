package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
)

// Per-kind upload ceilings enforced while the multipart body streams to disk.
const (
	maxImageBytes    int64 = 10 << 20
	maxDocumentBytes int64 = 25 << 20
	maxVideoBytes    int64 = 2 << 30
	maxGenericBytes  int64 = 25 << 20
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

type artifactResponse struct {
	ID           string                `json:"id"`
	Path         string                `json:"path"`
	URL          string                `json:"url"`
	OriginalName string                `json:"originalName"`
	Kind         string                `json:"kind"`
	SizeBytes    int64                 `json:"sizeBytes"`
	Checksum     string                `json:"checksum,omitempty"`
	Preview      *previewResponse      `json:"preview,omitempty"`
	CreatedAt    string                `json:"createdAt"`
}

type previewResponse struct {
	SpriteURL   string `json:"spriteUrl"`
	CueURL      string `json:"cueUrl"`
	Columns     int    `json:"columns"`
	Rows        int    `json:"rows"`
	TileWidth   int    `json:"tileWidth"`
	TileHeight  int    `json:"tileHeight"`
	IntervalSec int    `json:"intervalSec"`
}

func newArtifactResponse(artifact models.MediaArtifact) artifactResponse {
	resp := artifactResponse{
		ID:           artifact.ID,
		Path:         artifact.Path,
		URL:          artifact.URL,
		OriginalName: artifact.OriginalName,
		Kind:         string(artifact.Kind),
		SizeBytes:    artifact.SizeBytes,
		Checksum:     artifact.Checksum,
		CreatedAt:    artifact.CreatedAt.Format(time.RFC3339Nano),
	}
	if artifact.Preview != nil {
		resp.Preview = &previewResponse{
			SpriteURL:   "/media/" + artifact.Preview.SpritePath,
			CueURL:      "/media/" + artifact.Preview.CuePath,
			Columns:     artifact.Preview.Columns,
			Rows:        artifact.Preview.Rows,
			TileWidth:   artifact.Preview.TileWidth,
			TileHeight:  artifact.Preview.TileHeight,
			IntervalSec: artifact.Preview.IntervalSec,
		}
	}
	return resp
}

type uploadedMedia struct {
	tempPath     string
	size         int64
	originalName string
	contentType  string
	kind         models.MediaKind
}

// Uploads handles POST /api/uploads: a multipart form with a single "file"
// part plus optional "folder", "baseName" and "client" fields. The file part
// streams straight to the temp dir so large videos never buffer in memory.
func (h *Handler) Uploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart payload"))
		return
	}

	var (
		media    *uploadedMedia
		folder   string
		baseName string
		clientID string
	)
	cleanupTemp := func() {
		if media != nil && media.tempPath != "" {
			_ = os.Remove(media.tempPath)
		}
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cleanupTemp()
			writeError(w, http.StatusBadRequest, fmt.Errorf("read multipart data: %w", err))
			return
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "file" {
			if media != nil {
				_ = part.Close()
				continue
			}
			saved, saveErr := h.saveMultipartFile(part)
			if saveErr != nil {
				cleanupTemp()
				status := http.StatusBadRequest
				if errors.Is(saveErr, errUploadTooLarge) {
					status = http.StatusRequestEntityTooLarge
				}
				writeError(w, status, saveErr)
				return
			}
			media = saved
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			cleanupTemp()
			writeError(w, http.StatusBadRequest, fmt.Errorf("read form field: %w", readErr))
			return
		}
		value := strings.TrimSpace(string(payload))
		switch name {
		case "folder":
			folder = value
		case "baseName":
			baseName = value
		case "client":
			clientID = value
		}
	}
	if media == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file part is required"))
		return
	}

	job := models.UploadJob{
		TempPath:     media.tempPath,
		OriginalName: media.originalName,
		ContentType:  media.contentType,
		SizeBytes:    media.size,
		TargetFolder: targetFolder(media.kind, folder),
		BaseName:     baseName,
		ClientID:     clientID,
	}
	artifact, err := h.Store.Ingest(r.Context(), job)
	if err != nil {
		cleanupTemp()
		h.Logger.Error("ingest failed", "original_name", media.originalName, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, newArtifactResponse(artifact))
}

func (h *Handler) saveMultipartFile(part *multipart.Part) (*uploadedMedia, error) {
	defer part.Close()
	contentType := part.Header.Get("Content-Type")
	kind := models.KindFor(contentType, part.FileName())
	limit := uploadLimit(kind)

	tmp, err := os.CreateTemp(h.Store.TempDir(), "pending-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()
	written, err := io.Copy(tmp, io.LimitReader(part, limit+1))
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if written > limit {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %s uploads are capped at %d bytes", errUploadTooLarge, kind, limit)
	}
	return &uploadedMedia{
		tempPath:     tmp.Name(),
		size:         written,
		originalName: part.FileName(),
		contentType:  contentType,
		kind:         kind,
	}, nil
}

func uploadLimit(kind models.MediaKind) int64 {
	switch kind {
	case models.KindImage:
		return maxImageBytes
	case models.KindDocument:
		return maxDocumentBytes
	case models.KindVideo:
		return maxVideoBytes
	default:
		return maxGenericBytes
	}
}

// targetFolder places each upload under a per-kind directory, with an
// optional caller-supplied subfolder below it.
func targetFolder(kind models.MediaKind, folder string) string {
	base := kindFolder(kind)
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return base
	}
	return path.Join(base, folder)
}

func kindFolder(kind models.MediaKind) string {
	switch kind {
	case models.KindImage:
		return "image"
	case models.KindVideo:
		return "video"
	case models.KindDocument:
		return "doc"
	default:
		return "files"
	}
}
