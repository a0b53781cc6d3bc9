// internal/response/sanitize.go
package response

import "strings"

// maxResponseLength caps stored free-text responses.
const maxResponseLength = 1000

// Sanitize truncates a free-text response and strips it to a restricted
// character set, blocking markup and control characters from reaching
// downstream rendering. Letters (including Norwegian), digits, whitespace
// and common punctuation survive; everything else is dropped.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	count := 0
	for _, r := range text {
		if count >= maxResponseLength {
			break
		}
		if !allowedRune(r) {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return strings.TrimSpace(b.String())
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == 'æ', r == 'ø', r == 'å', r == 'Æ', r == 'Ø', r == 'Å':
		return true
	case r == ' ', r == '\n', r == '\t':
		return true
	}
	switch r {
	case '.', ',', ':', ';', '-', '_', '(', ')', '?', '!', '/', '\'', '"', '+', '%', '&', '@':
		return true
	}
	return false
}
