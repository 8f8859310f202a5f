package models

import "strings"

// Delimiter is the conventional path separator inside object keys. The store
// itself has no notion of directories.
const Delimiter = "/"

// ParentPrefix returns the folder prefix that contains key, or "" at the root.
// A folder prefix such as "a/b/" has parent "a/".
func ParentPrefix(key string) string {
	trimmed := strings.TrimSuffix(key, Delimiter)
	idx := strings.LastIndex(trimmed, Delimiter)
	if idx < 0 {
		return ""
	}
	return trimmed[:idx+1]
}

// BaseName returns the last segment of a key or prefix
func BaseName(path string) string {
	trimmed := strings.TrimSuffix(path, Delimiter)
	if idx := strings.LastIndex(trimmed, Delimiter); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// UploadKey computes the destination key for a file uploaded into folder:
// "folder/basename", or just basename when folder is the root.
func UploadKey(folder, basename string) string {
	folder = strings.TrimSuffix(folder, Delimiter)
	if folder == "" {
		return basename
	}
	return folder + Delimiter + basename
}
