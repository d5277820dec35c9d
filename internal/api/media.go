package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/httprange"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/registry"
)

var errMediaNotFound = errors.New("media not found")

// Media handles GET /media/{kind}/{name...}: byte-range streaming of stored
// files. Documents accept ?download=1 to force an attachment disposition, and
// preview assets under /media/previews/ are served with a long cache lifetime.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	rel := strings.TrimPrefix(r.URL.Path, "/media/")
	rel = strings.Trim(rel, "/")
	if rel == "" || !validMediaPrefix(rel) {
		writeError(w, http.StatusNotFound, errMediaNotFound)
		return
	}
	fullPath, err := h.Store.AbsolutePath(rel)
	if err != nil {
		writeError(w, http.StatusNotFound, errMediaNotFound)
		return
	}
	file, err := os.Open(fullPath)
	if err != nil {
		writeError(w, http.StatusNotFound, errMediaNotFound)
		return
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		writeError(w, http.StatusNotFound, errMediaNotFound)
		return
	}

	artifact, haveRecord := h.lookupArtifact(r.Context(), rel)

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(fullPath))
	if strings.HasPrefix(rel, "previews/") {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	if haveRecord && artifact.Checksum != "" {
		etag := `"` + artifact.Checksum + `"`
		w.Header().Set("ETag", etag)
		if matchesETag(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	if wantsDownload(r) {
		name := path.Base(rel)
		if haveRecord && artifact.OriginalName != "" {
			name = artifact.OriginalName
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	window := httprange.Parse(r.Header.Get("Range"), stat.Size())
	w.Header().Set("Content-Length", strconv.FormatInt(window.Length(), 10))
	status := http.StatusOK
	if window.Partial {
		w.Header().Set("Content-Range", window.ContentRange())
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	section := io.NewSectionReader(file, window.Start, window.Length())
	if _, err := io.Copy(w, section); err != nil {
		// Client went away mid-stream; nothing to send.
		h.Logger.Debug("media stream interrupted", "path", rel, "error", err)
	}
}

func (h *Handler) lookupArtifact(ctx context.Context, rel string) (models.MediaArtifact, bool) {
	if h.Registry == nil {
		return models.MediaArtifact{}, false
	}
	artifact, err := h.Registry.FindByPath(ctx, rel)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			h.Logger.Warn("artifact lookup failed", "path", rel, "error", err)
		}
		return models.MediaArtifact{}, false
	}
	return artifact, true
}

func validMediaPrefix(rel string) bool {
	prefix := rel
	if idx := strings.IndexByte(rel, '/'); idx > 0 {
		prefix = rel[:idx]
	}
	switch prefix {
	case "image", "video", "doc", "files", "previews":
		return true
	default:
		return false
	}
}

// mediaContentTypes covers extensions missing from the platform mime table.
var mediaContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".vtt":  "text/vtt",
}

func contentTypeFor(fullPath string) string {
	ext := strings.ToLower(filepath.Ext(fullPath))
	if ct, ok := mediaContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func wantsDownload(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("download"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func matchesETag(header, etag string) bool {
	if strings.TrimSpace(header) == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
