package domain

import (
	"mime"
	"strings"
)

// MaxVideoBytes is the largest accepted video upload; larger files are rejected.
const MaxVideoBytes int64 = 50 << 20

var (
	imageContentTypes = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/gif":  "gif",
		"image/avif": "avif",
		"image/heic": "heic",
		"image/heif": "heif",
	}
	videoContentTypes = map[string]string{
		"video/mp4":       "mp4",
		"video/webm":      "webm",
		"video/quicktime": "mov",
		"video/ogg":       "ogv",
	}
)

// NormalizeContentType lowercases ct and drops parameters such as charset.
func NormalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return parsed
	}
	return strings.ToLower(ct)
}

// MediaKindForContentType classifies an upload. ok is false for types outside both
// rosters.
func MediaKindForContentType(ct string) (kind MediaKind, ok bool) {
	ct = NormalizeContentType(ct)
	if _, found := imageContentTypes[ct]; found {
		return MediaImage, true
	}
	if _, found := videoContentTypes[ct]; found {
		return MediaVideo, true
	}
	return "", false
}

// ExtensionForContentType returns the object file extension for a supported type.
func ExtensionForContentType(ct string) (string, bool) {
	ct = NormalizeContentType(ct)
	if ext, ok := imageContentTypes[ct]; ok {
		return ext, true
	}
	ext, ok := videoContentTypes[ct]
	return ext, ok
}
