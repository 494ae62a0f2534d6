// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChunkType tags a record of the stream.
type ChunkType string

const (
	TypeChunk            ChunkType = "chunk"
	TypeDone             ChunkType = "done"
	TypeError            ChunkType = "error"
	TypeWebSearch        ChunkType = "web_search"
	TypeExtendedThinking ChunkType = "extended_thinking"
	TypeImageGeneration  ChunkType = "image_generation"
)

// IsStatus reports whether t is an informational status that is shown but
// never appended to the answer.
func (t ChunkType) IsStatus() bool {
	return t == TypeWebSearch || t == TypeExtendedThinking || t == TypeImageGeneration
}

// Chunk is one decoded record.
type Chunk struct {
	Type    ChunkType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
	Query   string    `json:"query,omitempty"`
	ChatID  string    `json:"chat_id,omitempty"`

	// Synthetic marks progress notices generated by the client. They are
	// delivered to OnChunk only and never become part of the answer.
	Synthetic bool `json:"-"`
}

// ErrorMessage returns the best description carried by an error record.
func (c Chunk) ErrorMessage() string {
	for _, s := range []string{c.Error, c.Message, c.Content} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "unknown stream error"
}

// doneSentinel ends OpenAI-style streams.
const doneSentinel = "[DONE]"

// ParseLine decodes one line of the body. ok is false for lines that are
// not data records (comments, event names, blank keep-alives); those are
// ignored. A data record that is not valid JSON returns an error, which
// callers treat as non-fatal.
func ParseLine(line string) (c Chunk, ok bool, err error) {
	key, value, found := strings.Cut(line, ":")
	if !found || strings.TrimSpace(key) != "data" {
		return Chunk{}, false, nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Chunk{}, false, nil
	}
	if value == doneSentinel {
		return Chunk{Type: TypeDone}, true, nil
	}

	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return Chunk{}, true, fmt.Errorf("malformed record: %w", err)
	}
	if c.Type == "" && c.Content != "" {
		c.Type = TypeChunk
	}
	return c, true, nil
}
