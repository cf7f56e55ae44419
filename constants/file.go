package constants

import (
	"path/filepath"
	"strings"
)

// FileFormats holds the allowed source formats for a document.
var FileFormats = []string{"PDF", "IMAGE"}

// AllowedExtensions holds the default allowed file extensions for
// document intake.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its source format, or ""
// when the extension is not supported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "PDF"
	case "jpg", "jpeg", "png":
		return "IMAGE"
	default:
		return ""
	}
}

// IsAllowedPath reports whether the path has an extension we ingest.
func IsAllowedPath(path string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(path))]
	return ok
}
