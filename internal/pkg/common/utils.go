package common

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// TruncateString shortens a string for log previews
func TruncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// ClampString cuts s to at most max bytes on a rune boundary. Unlike
// TruncateString it adds no marker, so the result stays within max
// and is safe to store as content.
func ClampString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
