package utils

import (
	"path/filepath"
	"strings"
)

// PreviewKind tells a client how a file can be previewed inline
type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewText  PreviewKind = "text"
	PreviewVideo PreviewKind = "video"
	PreviewNone  PreviewKind = "none"
)

// maxPreviewSize limits inline previews to files under 10MB
const maxPreviewSize = 10 * 1024 * 1024

// ContentTypeFromExt guesses a MIME type from the key's extension
func ContentTypeFromExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	types := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".txt":  "text/plain",
		".md":   "text/markdown",
		".csv":  "text/csv",
		".json": "application/json",
		".xml":  "application/xml",
		".pdf":  "application/pdf",
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".zip":  "application/zip",
		".gz":   "application/gzip",
	}
	if t, ok := types[ext]; ok {
		return t
	}
	return "application/octet-stream"
}

// PreviewKindFor classifies a file for inline preview
func PreviewKindFor(key string, size int64) PreviewKind {
	if size > maxPreviewSize {
		return PreviewNone
	}
	contentType := ContentTypeFromExt(key)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return PreviewImage
	case strings.HasPrefix(contentType, "text/"), contentType == "application/json", contentType == "application/xml":
		return PreviewText
	case strings.HasPrefix(contentType, "video/"):
		return PreviewVideo
	}
	return PreviewNone
}
