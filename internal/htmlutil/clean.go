package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// Sanitize flattens any markup a text-generation service slipped into a
// narrative and trims the result. Plain text passes through unchanged.
func Sanitize(s string) string {
	if strings.ContainsRune(s, '<') && strings.ContainsRune(s, '>') {
		s = ToText(s)
	}
	return strings.TrimSpace(s)
}
