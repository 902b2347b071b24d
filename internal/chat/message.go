// Package chat provides the conversation data model and in-memory history.
//
// History is append-only within a turn and thread-safe. Reset is atomic: an
// in-flight response started before a Reset must not land in the cleared
// history, which the epoch guard on Append enforces.
package chat

import "strings"

// Role identifies the author of a message.
type Role string

// Valid message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Messages are value types; History
// copies them on the way in and out.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ValidRole reports whether r is one of the three conversation roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Empty reports whether the message carries no content after trimming.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Content) == ""
}
