package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", SingleLine("  a\n\tb   c\r\n"))
	assert.Equal(t, "", SingleLine(" \n "))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"newlines collapsed", "invalid\nscope\n\nrequested", 100, "invalid scope requested"},
		{"unicode safe", "héllo wörld ünïcode", 9, "héllo ..."},
		{"tiny max clamped", "abcdef", 1, "a..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestTruncate_MaxDescriptionLen(t *testing.T) {
	got := Truncate(strings.Repeat("x", 1000), MaxDescriptionLen)
	assert.Len(t, []rune(got), MaxDescriptionLen)
	assert.True(t, strings.HasSuffix(got, "..."))
}
