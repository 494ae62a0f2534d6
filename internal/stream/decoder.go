// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"unicode/utf8"
)

// LineDecoder converts raw body chunks into complete text lines.
//
// A multi-byte UTF-8 sequence split across chunks is held back until the
// rest arrives. Invalid bytes decode to U+FFFD. Lines end at "\n"; a
// trailing "\r" is dropped.
type LineDecoder struct {
	pending []byte
	partial strings.Builder
}

// Decode consumes chunk and returns the lines it completed.
func (d *LineDecoder) Decode(chunk []byte) []string {
	data := chunk
	if len(d.pending) > 0 {
		data = append(d.pending, chunk...)
		d.pending = nil
	}

	cut := incompleteTail(data)
	if cut < len(data) {
		d.pending = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}
	return d.split(strings.ToValidUTF8(string(data), string(utf8.RuneError)))
}

// Flush returns whatever is buffered as a final line, if anything.
func (d *LineDecoder) Flush() []string {
	text := strings.ToValidUTF8(string(d.pending), string(utf8.RuneError))
	d.pending = nil
	d.partial.WriteString(text)
	if d.partial.Len() == 0 {
		return nil
	}
	last := strings.TrimSuffix(d.partial.String(), "\r")
	d.partial.Reset()
	return []string{last}
}

func (d *LineDecoder) split(text string) []string {
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			d.partial.WriteString(text)
			return lines
		}
		d.partial.WriteString(text[:i])
		lines = append(lines, strings.TrimSuffix(d.partial.String(), "\r"))
		d.partial.Reset()
		text = text[i+1:]
	}
}

// incompleteTail returns the index where a truncated but so far valid
// multi-byte sequence begins, or len(b) when the tail is complete.
func incompleteTail(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if !utf8.FullRune(b[start:]) {
			return start
		}
		return len(b)
	}
	return len(b)
}
