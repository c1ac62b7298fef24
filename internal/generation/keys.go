package generation

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const randomSuffixLen = 13

// StorageKey describes where a downloaded result is persisted and how it
// should be served.
type StorageKey struct {
	Key         string
	ContentType string
	Extension   string
}

// BuildStorageKey derives the object-store key for one task result:
// ai-generated/{images|videos}/YYYY/MM/DD/{millis}-{random}.{ext}. The
// extension comes from the source URL path; when the path carries none the
// media default applies (png for images, mp4 for videos). Keys embed a
// millisecond timestamp and a random suffix, so collisions are practically
// excluded and no locking is needed around writes.
func BuildStorageKey(kind Kind, sourceURL string, now time.Time) StorageKey {
	ext := extensionFromURL(sourceURL)
	category := "images"
	contentPrefix := "image"
	if kind == KindVideo {
		category = "videos"
		contentPrefix = "video"
	}
	if ext == "" {
		if kind == KindVideo {
			ext = "mp4"
		} else {
			ext = "png"
		}
	}
	filename := fmt.Sprintf("%d-%s.%s", now.UnixMilli(), randomSuffix(), ext)
	key := fmt.Sprintf("ai-generated/%s/%d/%02d/%02d/%s",
		category, now.Year(), int(now.Month()), now.Day(), filename)
	return StorageKey{
		Key:         key,
		ContentType: contentPrefix + "/" + ext,
		Extension:   ext,
	}
}

func extensionFromURL(sourceURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(path.Ext(parsed.Path), ".")
	if ext == "" {
		return ""
	}
	for _, r := range ext {
		if !isWordChar(r) {
			return ""
		}
	}
	return strings.ToLower(ext)
}

func isWordChar(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_'
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomSuffixLen]
}
