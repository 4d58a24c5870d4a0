package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrivateTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "single private tag",
			input:    "Hello <private>secret</private> world",
			expected: "Hello  world",
		},
		{
			name:     "multiple private tags",
			input:    "Hello <private>secret1</private> and <private>secret2</private> world",
			expected: "Hello  and  world",
		},
		{
			name:     "multiline private tag",
			input:    "Hello <private>\nmultiline\nsecret\n</private> world",
			expected: "Hello  world",
		},
		{
			name:     "entirely private",
			input:    "<private>everything is secret</private>",
			expected: "",
		},
		{
			name:     "unmatched opening tag",
			input:    "Hello <private>unclosed",
			expected: "Hello <private>unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPrivateTags(tt.input))
		})
	}
}

func TestRedactContacts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "email", input: "write to me@example.com please", expected: "write to [email] please"},
		{name: "phone", input: "call +1 (555) 123-4567 now", expected: "call [phone] now"},
		{name: "short numbers kept", input: "heart rate 82 bpm", expected: "heart rate 82 bpm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactContacts(tt.input))
		})
	}
}

func TestIsEntirelyPrivate(t *testing.T) {
	assert.True(t, IsEntirelyPrivate("<private>x</private>"))
	assert.True(t, IsEntirelyPrivate("  <private>x</private>\n "))
	assert.False(t, IsEntirelyPrivate("a <private>x</private>"))
}

func TestClean(t *testing.T) {
	in := "  I like\n\n<private>my ex's name</private> quiet   piano, mail a@b.io  "
	assert.Equal(t, "I like quiet piano, mail [email]", Clean(in))
}
