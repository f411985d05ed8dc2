// Package strings provides string formatting helpers for terminal output.
package strings

import "fmt"

// Pluralize returns singular or plural form based on count.
// Example: Pluralize("file", 1) returns "file", Pluralize("file", 2) returns "files"
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// FormatBytes returns a human-readable byte count using binary units.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
