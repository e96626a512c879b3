package strings

import (
	"strings"
)

// MaxDescriptionLen bounds free text echoed from remote servers, such as an
// OAuth error_description, before it is shown to the user.
const MaxDescriptionLen = 200

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// SingleLine collapses every run of whitespace, including newlines, into a
// single space and trims both ends.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns s as a single line of at most maxLen runes. A shortened
// result ends in "...". maxLen is clamped to MinTruncateLen.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = SingleLine(s)

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
