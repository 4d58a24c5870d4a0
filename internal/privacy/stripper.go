// Package privacy scrubs user-authored text before it leaves the process.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateTagRegex matches <private>...</private> tags
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// emailRegex matches bare email addresses.
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// phoneRegex matches phone-number-like digit runs.
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)

	spaceRegex = regexp.MustCompile(`\s+`)
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// RedactContacts replaces email addresses and phone numbers with placeholders.
func RedactContacts(text string) string {
	text = emailRegex.ReplaceAllString(text, "[email]")
	return phoneRegex.ReplaceAllString(text, "[phone]")
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	stripped := StripPrivateTags(text)
	return strings.TrimSpace(stripped) == ""
}

// Clean performs full privacy cleaning on text.
// This is the function to use before putting user text into a prompt.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = RedactContacts(text)
	text = spaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
