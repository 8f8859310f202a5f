// Package utils provides shared formatting and content helpers
package utils

import (
	"fmt"
	"time"
)

var byteUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders a byte count with binary multiples, e.g. "1.5 GB"
func FormatBytes(bytes uint64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes) / 1024
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}

// FormatFileSize is FormatBytes for listing sizes; negative sizes render as zero
func FormatFileSize(size int64) string {
	if size < 0 {
		return "0 B"
	}
	return FormatBytes(uint64(size))
}

// FormatModified renders an object's last-modified time in loc, or "-" when
// the store did not report one
func FormatModified(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
