// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// =============================================================================
// MESSAGES
// =============================================================================

// ChatMessage is a single role-tagged entry of a request's message list.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// StoredMessage is a message as the server (or the local cache) keeps it.
type StoredMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// HISTORY
// =============================================================================

// Turn is one completed exchange of prior conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// FlattenHistory expands turns into [u1, a1, u2, a2, ...] and appends prompt
// as the final user entry. An empty prompt is not appended.
func FlattenHistory(turns []Turn, prompt string) []ChatMessage {
	out := make([]ChatMessage, 0, len(turns)*2+1)
	for _, t := range turns {
		out = append(out, NewUserMessage(t.User), NewAssistantMessage(t.Assistant))
	}
	if prompt != "" {
		out = append(out, NewUserMessage(prompt))
	}
	return out
}

// TurnsFromMessages pairs each user message with the assistant reply that
// directly follows it. System messages are skipped, as are user messages
// without a non-empty reply (a trailing prompt or a failed generation).
func TurnsFromMessages(msgs []StoredMessage) []Turn {
	var turns []Turn
	for i := 0; i < len(msgs); i++ {
		if msgs[i].Role != RoleUser {
			continue
		}
		if i+1 < len(msgs) && msgs[i+1].Role == RoleAssistant && msgs[i+1].Content != "" {
			turns = append(turns, Turn{User: msgs[i].Content, Assistant: msgs[i+1].Content})
			i++
		}
	}
	return turns
}
