package chat

import (
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole normalises a role received from storage; anything unknown is a user turn.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// Message is a single conversation turn. It is never modified after it has
// been appended to a Chat.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: At(nowFunc())}
}

// FileAnalysis records the result of analysing an uploaded file.
type FileAnalysis struct {
	Filename  string    `json:"filename"`
	Analysis  string    `json:"analysis"`
	Timestamp Timestamp `json:"timestamp"`
}

func normalizeMessage(msg Message, now time.Time) Message {
	msg.Role = ParseRole(string(msg.Role))
	if msg.Timestamp.IsZero() {
		msg.Timestamp = At(now)
	} else {
		msg.Timestamp = At(msg.Timestamp.Time)
	}
	return msg
}
