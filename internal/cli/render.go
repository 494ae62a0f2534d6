// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/chatcore/internal/model"
	"github.com/jeranaias/chatcore/internal/stream"
	"github.com/jeranaias/chatcore/internal/util"
)

// =============================================================================
// STREAM OUTPUT
// =============================================================================

// chunkPrinter writes answer text to out as it arrives and everything else
// (status records, progress notices) to status.
type chunkPrinter struct {
	out    io.Writer
	status io.Writer
	quiet  bool

	wrote     bool
	endsInNL  bool
	lastState stream.ChunkType
}

func newChunkPrinter(out, status io.Writer, quiet bool) *chunkPrinter {
	return &chunkPrinter{out: out, status: status, quiet: quiet}
}

// OnChunk is a stream.Handlers.OnChunk.
func (p *chunkPrinter) OnChunk(c stream.Chunk) {
	switch {
	case c.Synthetic:
		if !p.quiet {
			fmt.Fprintln(p.status, "\n"+DimStyle.Render(c.Content))
		}
	case c.Type == stream.TypeChunk:
		io.WriteString(p.out, c.Content)
		p.wrote = true
		p.lastState = ""
		p.endsInNL = strings.HasSuffix(c.Content, "\n")
	case c.Type.IsStatus():
		// Repeated status records of the same kind are collapsed.
		if p.quiet || c.Type == p.lastState {
			return
		}
		p.lastState = c.Type
		fmt.Fprintln(p.status, DimStyle.Render(statusLine(c)))
	}
}

// Finish terminates the answer with a newline.
func (p *chunkPrinter) Finish() {
	if p.wrote && !p.endsInNL {
		fmt.Fprintln(p.out)
	}
}

func statusLine(c stream.Chunk) string {
	switch c.Type {
	case stream.TypeWebSearch:
		if c.Query != "" {
			return "[searching the web: " + c.Query + "]"
		}
		return "[searching the web]"
	case stream.TypeExtendedThinking:
		return "[thinking...]"
	case stream.TypeImageGeneration:
		return "[generating image...]"
	}
	return "[" + string(c.Type) + "]"
}

// =============================================================================
// LISTINGS
// =============================================================================

const (
	idColumn    = 14
	titleColumn = 40
)

// writeChatList renders chat summaries as aligned columns.
func writeChatList(w io.Writer, chats []model.StoredChat, now time.Time) {
	if len(chats) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}
	for _, c := range chats {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			util.PadRight(c.ID, idColumn),
			util.PadRight(title, titleColumn),
			DimStyle.Render(relativeTime(c.UpdatedAt, now)))
	}
}

// writeMessages renders a conversation transcript.
func writeMessages(w io.Writer, sess *model.ChatSession) {
	fmt.Fprintln(w, TitleStyle.Render(orUntitled(sess.Title)))
	fmt.Fprintln(w, RenderSeparator(util.Width(orUntitled(sess.Title))))
	for _, m := range sess.Messages {
		style := AssistantStyle
		if m.Role == model.RoleUser {
			style = UserStyle
		}
		fmt.Fprintln(w, style.Render(m.Role.DisplayName()+":"))
		fmt.Fprintln(w, strings.TrimRight(m.Content, "\n"))
		fmt.Fprintln(w)
	}
}

// writeAgents lists agents, marking the configured default with "*".
func writeAgents(w io.Writer, agents []model.Agent, defaultID string) {
	if len(agents) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No agents available."))
		return
	}
	for _, a := range agents {
		var caps []string
		if a.SupportsExtendedThinking {
			caps = append(caps, "thinking")
		}
		if a.SupportsWebSearch {
			caps = append(caps, "web")
		}
		mark := " "
		if a.ID == defaultID {
			mark = "*"
		}
		line := mark + " " + util.PadRight(a.ID, idColumn) + "  " + util.PadRight(a.Name, 24)
		if len(caps) > 0 {
			line += "  " + DimStyle.Render("["+strings.Join(caps, ", ")+"]")
		}
		fmt.Fprintln(w, line)
		if a.Description != "" {
			fmt.Fprintln(w, "    "+DimStyle.Render(util.Clip(a.Description, 70)))
		}
	}
}

func writeUsage(w io.Writer, u *model.UsageLimits, now time.Time) {
	tier := u.Tier
	if u.IsGuest {
		tier += " (guest)"
	}
	fmt.Fprintln(w, RenderLabel("Tier:")+ValueStyle.Render(tier))

	used := fmt.Sprintf("%d", u.MessagesUsed)
	switch left := u.Remaining(); {
	case left < 0:
		used += " (unlimited)"
	case left == 0:
		used += " / " + fmt.Sprint(u.MessagesLimit) + " " + WarningStyle.Render("limit reached")
	default:
		used += fmt.Sprintf(" / %d (%d left)", u.MessagesLimit, left)
	}
	fmt.Fprintln(w, RenderLabel("Messages:")+ValueStyle.Render(used))

	if u.ResetAt != nil {
		fmt.Fprintln(w, RenderLabel("Resets:")+ValueStyle.Render(u.ResetAt.Local().Format(time.RFC1123)+" ("+untilTime(*u.ResetAt, now)+")"))
	}
}

func orUntitled(s string) string {
	if s == "" {
		return "(untitled)"
	}
	return s
}

// relativeTime renders t as "5m ago" style text.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}

func untilTime(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("in %dm", int(d.Minutes())+1)
	}
	return fmt.Sprintf("in %dh", int(d.Hours()))
}
