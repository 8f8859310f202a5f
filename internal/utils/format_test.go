package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		bytes    uint64
		expected string
	}{
		{"zero", 0, "0 B"},
		{"below one KB", 1023, "1023 B"},
		{"one KB", 1024, "1.0 KB"},
		{"1.5 KB", 1536, "1.5 KB"},
		{"one MB", 1 << 20, "1.0 MB"},
		{"1.5 GB", 1536 << 20, "1.5 GB"},
		{"one TB", 1 << 40, "1.0 TB"},
		{"max", ^uint64(0), "16.0 EB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatFileSize(-100))
	assert.Equal(t, "12 B", FormatFileSize(12))
	assert.Equal(t, "2.0 KB", FormatFileSize(2048))
}

func TestFormatModified(t *testing.T) {
	modified := time.Date(2025, 1, 2, 23, 30, 0, 0, time.UTC)
	plusTwo := time.FixedZone("UTC+2", 2*60*60)

	assert.Equal(t, "-", FormatModified(nil, time.UTC))
	assert.Equal(t, "-", FormatModified(&time.Time{}, time.UTC))
	assert.Equal(t, "2025-01-02 23:30", FormatModified(&modified, time.UTC))
	assert.Equal(t, "2025-01-03 01:30", FormatModified(&modified, plusTwo))
}
