// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// LocalIDPrefix marks chat ids minted on the client before the server has
// assigned one.
const LocalIDPrefix = "local-"

// IsLocalID reports whether id was generated locally.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// StoredChat is the metadata of a conversation as listed by GET /chats.
type StoredChat struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
}

// ChatSession is a cached conversation with its messages in order.
type ChatSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Model     string          `json:"model,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	Messages  []StoredMessage `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Local is set for sessions created on the client that the server
	// has not acknowledged yet.
	Local bool `json:"local,omitempty"`
}

// LastMessage returns the final message, or nil when there are none.
func (s *ChatSession) LastMessage() *StoredMessage {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Turns returns the completed exchanges of the session.
func (s *ChatSession) Turns() []Turn {
	return TurnsFromMessages(s.Messages)
}

// Clone returns a deep copy so callers can read it without holding the
// owner's lock.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = append([]StoredMessage(nil), s.Messages...)
	return &cp
}

// Meta projects the session onto the list shape.
func (s *ChatSession) Meta() StoredChat {
	return StoredChat{
		ID:           s.ID,
		Title:        s.Title,
		Model:        s.Model,
		AgentID:      s.AgentID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}
