// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineDecoder_SplitsLines(t *testing.T) {
	var d LineDecoder

	assert.Equal(t, []string{"data: a"}, d.Decode([]byte("data: a\nda")))
	assert.Nil(t, d.Decode([]byte("ta: b")))
	assert.Equal(t, []string{"data: b", ""}, d.Decode([]byte("\r\n\n")))
	assert.Nil(t, d.Flush())
}

func TestLineDecoder_HoldsSplitMultibyte(t *testing.T) {
	// "é" is C3 A9, "日" is E6 97 A5.
	full := []byte("data: é日\n")
	for cut := 1; cut < len(full); cut++ {
		var d LineDecoder
		var lines []string
		lines = append(lines, d.Decode(full[:cut])...)
		lines = append(lines, d.Decode(full[cut:])...)
		assert.Equal(t, []string{"data: é日"}, lines, "cut at %d", cut)
	}
}

func TestLineDecoder_ByteAtATime(t *testing.T) {
	var d LineDecoder
	var lines []string
	for _, b := range []byte("data: 🙂 ok\ndata: ñ") {
		lines = append(lines, d.Decode([]byte{b})...)
	}
	lines = append(lines, d.Flush()...)
	assert.Equal(t, []string{"data: 🙂 ok", "data: ñ"}, lines)
}

func TestLineDecoder_InvalidBytesBecomeReplacement(t *testing.T) {
	var d LineDecoder
	lines := d.Decode([]byte{'a', 0xFF, 'b', '\n'})
	assert.Equal(t, []string{"a�b"}, lines)
}

func TestLineDecoder_FlushTruncatedSequence(t *testing.T) {
	var d LineDecoder
	assert.Nil(t, d.Decode([]byte{'x', 0xE6, 0x97}))
	assert.Equal(t, []string{"x�"}, d.Flush())
	assert.Nil(t, d.Flush())
}
