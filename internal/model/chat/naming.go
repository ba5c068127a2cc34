package chat

import (
	"strings"
	"unicode/utf8"
)

// FallbackName names a conversation that has no user turn to derive from.
const FallbackName = "New chat"

const (
	maxNameRunes    = 50
	derivedPreview  = 30
	derivedEllipsis = "..."
)

var forbiddenNameChars = `\/*?:"<>|`

// SanitizeName strips characters that are unsafe in filenames and caps the
// result at 50 characters.
func SanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenNameChars, r) {
			return -1
		}
		return r
	}, name)
	return truncateRunes(strings.TrimSpace(cleaned), maxNameRunes)
}

// DeriveName builds a name from the first user turn.
func DeriveName(messages []Message) string {
	for _, msg := range messages {
		if ParseRole(string(msg.Role)) != RoleUser {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		name := strings.TrimSpace(truncateRunes(content, derivedPreview))
		if utf8.RuneCountInString(content) > derivedPreview {
			name += derivedEllipsis
		}
		if sanitized := SanitizeName(name); sanitized != "" {
			return sanitized
		}
	}
	return FallbackName
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
