package models

import "testing"

func TestParentPrefix(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"readme.txt", ""},
		{"docs/readme.txt", "docs/"},
		{"a/b/c.txt", "a/b/"},
		{"a/b/", "a/"},
		{"a/", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := ParentPrefix(tt.key); got != tt.want {
				t.Errorf("ParentPrefix(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"docs/readme.txt", "readme.txt"},
		{"docs/", "docs"},
		{"a/b/", "b"},
		{"top.txt", "top.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := BaseName(tt.path); got != tt.want {
				t.Errorf("BaseName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestUploadKey(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		basename string
		want     string
	}{
		{"root", "", "photo.png", "photo.png"},
		{"folder without slash", "docs", "readme.txt", "docs/readme.txt"},
		{"folder prefix with slash", "docs/", "readme.txt", "docs/readme.txt"},
		{"nested", "a/b", "c.txt", "a/b/c.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UploadKey(tt.folder, tt.basename); got != tt.want {
				t.Errorf("UploadKey(%q, %q) = %q, want %q", tt.folder, tt.basename, got, tt.want)
			}
		})
	}
}
