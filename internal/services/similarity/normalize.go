package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize produces the canonical comparison form of a name: NFD
// decomposition with combining marks dropped, lower-cased, punctuation
// replaced by spaces, whitespace collapsed.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark, dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
