// Package render turns engine output into something a person can read on
// the waiting-room screen. It owns text sanitising, the status message
// line-splitting rules and the announcement font layout. The terminal
// renderers (PlainRenderer here, the bubbletea kiosk in internal/tui)
// share the frame composition in frame.go.
package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize makes untrusted text safe to print. Terminal escape sequences
// are removed and control characters other than newlines are dropped, so
// item text is always shown literally and never interpreted.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			b.WriteRune(' ')
		case r == utf8.RuneError, unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Width returns the number of terminal cells s occupies.
func Width(s string) int {
	return ansi.StringWidth(s)
}

// runeLen counts characters, which is the unit every layout budget uses.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// compact removes all whitespace.
func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
