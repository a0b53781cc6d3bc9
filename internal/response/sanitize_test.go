// internal/response/sanitize_test.go
package response

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "Jeg kommer til møtet.", "Jeg kommer til møtet."},
		{"norwegian letters survive", "Blåbærsyltetøy på Ås", "Blåbærsyltetøy på Ås"},
		{"markup stripped", "<script>alert(1)</script>", "scriptalert(1)/script"},
		{"control characters dropped", "line1\x00\x1bline2", "line1line2"},
		{"whitespace kept, edges trimmed", "  hei\tder\n  ", "hei\tder"},
		{"punctuation kept", "Kl. 10:30 - passer det? Ja!", "Kl. 10:30 - passer det? Ja!"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := strings.Repeat("a", maxResponseLength+500)
	got := Sanitize(long)
	assert.Len(t, got, maxResponseLength)
}

func TestSanitize_TruncationCountsKeptRunes(t *testing.T) {
	// Disallowed runes do not consume the budget.
	in := strings.Repeat("<", 2000) + strings.Repeat("b", 10)
	assert.Equal(t, strings.Repeat("b", 10), Sanitize(in))
}
