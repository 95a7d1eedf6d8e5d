package security

import (
	"regexp"
	"strings"
)

// MaxNameLength bounds identifiers produced by SanitizeName.
const MaxNameLength = 255

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedDots    = regexp.MustCompile(`\.{2,}`)
)

// SanitizeName turns an untrusted name into an identifier that is safe to use
// as a single storage path segment. Unlike the detector it transforms instead
// of rejecting.
func SanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "")
	s = repeatedDots.ReplaceAllString(s, ".")
	s = strings.TrimLeft(s, ".")
	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}
	if s == "" {
		return "unnamed"
	}
	return s
}
