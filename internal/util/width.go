// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: widths are terminal columns, so CJK and emoji count as two.

const ellipsis = "..."

// Clip shortens s to at most width terminal columns, ending with an ellipsis
// when anything was cut. Newlines are folded to spaces first so a chat title
// or message preview always stays on one row.
func Clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// PadRight pads s with spaces to exactly width columns, clipping first if
// it is too wide.
func PadRight(s string, width int) string {
	s = Clip(s, width)
	return runewidth.FillRight(s, width)
}

// Width reports the display width of s in terminal columns.
func Width(s string) int {
	return runewidth.StringWidth(s)
}
