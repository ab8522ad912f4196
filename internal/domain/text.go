package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns the canonical comparison form of v: trimmed, with
// accents removed (NFD decomposition, combining marks dropped) and
// lower-cased. A nil value yields "".
func NormalizeText(v any) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(stringify(v))

	// transform.Chain keeps internal state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	// Trim again: removing a trailing mark can expose whitespace.
	return strings.TrimSpace(strings.ToLower(stripped))
}

// SameText reports whether a and b have the same canonical form.
func SameText(a, b any) bool {
	return NormalizeText(a) == NormalizeText(b)
}

// Slug turns a name into a file-name fragment: canonical form with runs of
// non-alphanumerics collapsed to "_".
func Slug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range NormalizeText(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
