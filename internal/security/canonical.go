package security

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Canonical returns s in Unicode NFC with control characters other than tab,
// CR and LF removed. It is the form request bodies are rewritten to, so the
// detector scans it too.
func Canonical(s string) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
