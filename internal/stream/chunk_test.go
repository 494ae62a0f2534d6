// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Chunk
		ok      bool
		wantErr bool
	}{
		{"content", `data: {"type":"chunk","content":"Hi"}`, Chunk{Type: TypeChunk, Content: "Hi"}, true, false},
		{"no space", `data:{"type":"done","chat_id":"c1"}`, Chunk{Type: TypeDone, ChatID: "c1"}, true, false},
		{"openai done", `data: [DONE]`, Chunk{Type: TypeDone}, true, false},
		{"untyped content", `data: {"content":"x"}`, Chunk{Type: TypeChunk, Content: "x"}, true, false},
		{"web search", `data: {"type":"web_search","query":"go 1.24"}`, Chunk{Type: TypeWebSearch, Query: "go 1.24"}, true, false},
		{"comment", `: keep-alive`, Chunk{}, false, false},
		{"event line", `event: message`, Chunk{}, false, false},
		{"blank", ``, Chunk{}, false, false},
		{"empty data", `data:`, Chunk{}, false, false},
		{"malformed", `data: {"type":`, Chunk{}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := ParseLine(tc.line)
			assert.Equal(t, tc.ok, ok)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChunk_ErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", Chunk{Error: " boom "}.ErrorMessage())
	assert.Equal(t, "msg", Chunk{Message: "msg"}.ErrorMessage())
	assert.Equal(t, "unknown stream error", Chunk{}.ErrorMessage())
}

func TestChunkType_IsStatus(t *testing.T) {
	assert.True(t, TypeWebSearch.IsStatus())
	assert.True(t, TypeExtendedThinking.IsStatus())
	assert.True(t, TypeImageGeneration.IsStatus())
	assert.False(t, TypeChunk.IsStatus())
	assert.False(t, TypeDone.IsStatus())
}
