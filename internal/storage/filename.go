package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 60

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify reduces an arbitrary display name to a lowercase ASCII slug.
// Accented letters fold to their base form, runs of anything that is not a
// letter or digit collapse to a single hyphen, and the result is capped at
// a fixed length. An empty input yields "file".
func Slugify(name string) string {
	folded, _, err := transform.String(accentStripper, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "file"
	}
	return slug
}

// finalName builds the stored filename for an upload: the slug of the base
// name, a random disambiguator so concurrent uploads of the same title never
// collide, and the desired extension.
func finalName(base, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-%s%s", Slugify(base), disambiguator(), ext)
}

func disambiguator() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}

// baseNameFor returns the name to slug for a job, preferring an explicit
// BaseName over the uploaded filename.
func baseNameFor(job models.UploadJob) (base, ext string) {
	ext = filepath.Ext(job.OriginalName)
	if explicit := strings.TrimSpace(job.BaseName); explicit != "" {
		return explicit, ext
	}
	trimmed := strings.TrimSuffix(filepath.Base(job.OriginalName), ext)
	return trimmed, ext
}
