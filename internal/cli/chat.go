// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/chatcore/internal/config"
	"github.com/jeranaias/chatcore/internal/logging"
	"github.com/jeranaias/chatcore/internal/model"
	"github.com/jeranaias/chatcore/internal/session"
	"github.com/jeranaias/chatcore/internal/stream"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the prompt used by the REPL. *historyInput implements it.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// historyInput is a liner-backed prompt with persistent history.
type historyInput struct {
	line        *liner.State
	historyFile string
}

func newHistoryInput() *historyInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	h := &historyInput{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		h.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(h.historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return h
}

// ReadLine prompts and records non-empty input in the history.
func (h *historyInput) ReadLine(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (0600) and restores the terminal.
func (h *historyInput) Close() {
	defer h.line.Close()
	if h.historyFile == "" {
		return
	}
	if _, err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = h.line.WriteHistory(f)
}

// =============================================================================
// CHAT STATE
// =============================================================================

// chatREPL holds the interactive session.
type chatREPL struct {
	app   *App
	args  Args
	input lineReader

	agent    string
	think    bool
	explicit bool // agent chosen on the command line or with /agent

	turns   int
	started time.Time

	// reloaded is set by the config watcher and applied between prompts.
	reloaded atomic.Pointer[config.Config]
}

func newChatREPL(app *App, args Args, input lineReader) *chatREPL {
	agent := args.Agent
	if agent == "" {
		agent = app.Config.API.DefaultAgent
	}
	r := &chatREPL{
		app:      app,
		args:     args,
		input:    input,
		agent:    agent,
		think:    args.Think,
		explicit: args.Agent != "",
		started:  time.Now(),
	}
	if args.ChatID != "" {
		app.Chat.SetCurrent(args.ChatID)
	}
	return r
}

// HandleChat runs the interactive chat until /quit, Ctrl+D or Ctrl+C at
// an empty prompt.
func HandleChat(ctx context.Context, app *App, args Args) error {
	if !IsTTY() {
		return &TTYRequiredError{Operation: "chat"}
	}
	input := newHistoryInput()
	defer input.Close()

	r := newChatREPL(app, args, input)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.watchConfig(ctx)
	return r.run(ctx)
}

// watchConfig reloads the config file while chatting. Only the default
// agent and log level take effect without a restart.
func (r *chatREPL) watchConfig(ctx context.Context) {
	if _, err := config.EnsureConfigDir(); err != nil {
		return
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return
	}
	err = config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			r.app.Log.WithError(err).Warn("config reload failed, keeping previous settings")
			return
		}
		r.reloaded.Store(cfg)
	})
	if err != nil {
		r.app.Log.WithError(err).Debug("config watch unavailable")
	}
}

// applyReload adopts a config picked up by the watcher.
func (r *chatREPL) applyReload() {
	cfg := r.reloaded.Swap(nil)
	if cfg == nil {
		return
	}
	config.SetGlobal(cfg)
	r.app.Config = cfg
	r.app.Log.SetLevel(logging.ParseLevel(cfg.Log.Level))
	if !r.explicit && cfg.API.DefaultAgent != "" {
		r.agent = cfg.API.DefaultAgent
	}
	r.app.status(r.args, "%s", DimStyle.Render("[config reloaded]"))
}

func (r *chatREPL) run(ctx context.Context) error {
	if !r.args.Quiet {
		r.printWelcome()
	}

	for {
		r.applyReload()

		// liner measures the prompt itself, so it stays unstyled.
		line, err := r.input.ReadLine("you> ")
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or closed input.
			fmt.Fprintln(r.app.Out)
			r.printSummary()
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			more, err := r.command(ctx, line)
			if err != nil {
				DisplayError(r.app.Err, "chat", err, false)
			}
			if !more {
				r.printSummary()
				return nil
			}
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			r.printSummary()
			return nil
		}

		r.send(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// send streams one answer and reports its outcome. Ctrl+C during
// generation stops it.
func (r *chatREPL) send(ctx context.Context, prompt string) {
	stop := notifyStop(r.app.Chat.Stop)
	defer stop()

	if !r.args.Quiet && (stream.IsImageRequest(prompt) || r.think) {
		r.app.status(r.args, "%s", DimStyle.Render("[this may take a while]"))
	}

	fmt.Fprintln(r.app.Out)
	printer := newChunkPrinter(r.app.Out, r.app.Err, r.args.Quiet)
	reported := false
	res, err := r.app.Chat.Send(ctx, "", prompt, session.Options{
		AgentID:          r.agent,
		ExtendedThinking: r.think,
		OnChunk:          printer.OnChunk,
		OnError: func(msg string) {
			reported = true
			fmt.Fprintf(r.app.Err, "%s %s\n", ErrorStyle.Render("[Error]"), msg)
		},
	})
	printer.Finish()
	if err != nil {
		if !reported && !isEmptyPrompt(err) {
			DisplayError(r.app.Err, "chat", err, false)
		}
		return
	}

	r.turns++
	switch {
	case res.Cancelled:
		fmt.Fprintln(r.app.Err, WarningStyle.Render("[Stopped]"))
	case res.Partial != nil:
		fmt.Fprintf(r.app.Err, "%s %s\n", WarningStyle.Render("[Incomplete]"), stream.Describe(res.Partial))
	}
	fmt.Fprintln(r.app.Out)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command. It returns false to leave the chat.
func (r *chatREPL) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name, rest := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/clear":
		r.app.Chat.NewChat()
		fmt.Fprintln(r.app.Out, SuccessStyle.Render("[New conversation]"))

	case "/open":
		if len(rest) == 0 {
			return true, ErrMissingArgument("chat id", "/open <id>")
		}
		sess, err := r.app.Cache.GetChat(ctx, rest[0], false)
		if err != nil {
			return true, err
		}
		r.app.Chat.SetCurrent(sess.ID)
		fmt.Fprintf(r.app.Out, "%s %s (%d messages)\n",
			SuccessStyle.Render("[Opened]"), orUntitled(sess.Title), len(sess.Messages))

	case "/chats":
		writeChatList(r.app.Out, r.app.Cache.ListChats(ctx, false), time.Now())

	case "/agent":
		if len(rest) == 0 {
			fmt.Fprintf(r.app.Out, "%s %s\n", RenderLabel("Agent:"), orDefault(r.agent))
			return true, nil
		}
		r.agent = rest[0]
		r.explicit = true
		fmt.Fprintf(r.app.Out, "%s %s\n", SuccessStyle.Render("[Agent]"), r.agent)

	case "/think":
		r.think = !r.think
		fmt.Fprintf(r.app.Out, "%s %s\n", SuccessStyle.Render("[Extended thinking]"), onOff(r.think))

	case "/usage":
		u, err := r.app.Cache.Usage(ctx, false)
		if err != nil {
			return true, err
		}
		writeUsage(r.app.Out, u, time.Now())

	default:
		return true, NewUsageError(fmt.Sprintf("unknown command: %s (type /help for commands)", name))
	}
	return true, nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *chatREPL) printWelcome() {
	w := r.app.Out
	fmt.Fprintln(w, TitleStyle.Render("chatcore interactive chat"))
	fmt.Fprintln(w, RenderSeparator(30))
	fmt.Fprintln(w, RenderLabel("Server:")+ValueStyle.Render(r.app.Config.API.BaseURL))
	fmt.Fprintln(w, RenderLabel("Agent:")+ValueStyle.Render(orDefault(r.agent)))
	if r.think {
		fmt.Fprintln(w, RenderLabel("Thinking:")+ValueStyle.Render("on"))
	}
	if id := r.app.Chat.Current(); id != "" {
		fmt.Fprintln(w, RenderLabel("Chat:")+ValueStyle.Render(id))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, DimStyle.Render("Type a message and press Enter. /help for commands, Ctrl+C stops generating."))
	fmt.Fprintln(w)
}

func (r *chatREPL) printHelp() {
	cmds := []struct{ cmd, desc string }{
		{"/help", "Show this help"},
		{"/new", "Start a new conversation"},
		{"/open <id>", "Continue a stored conversation"},
		{"/chats", "List conversations"},
		{"/agent [id]", "Show or switch agent"},
		{"/think", "Toggle extended thinking"},
		{"/usage", "Show message quota"},
		{"/quit", "Exit chat"},
	}
	fmt.Fprintln(r.app.Out)
	for _, c := range cmds {
		fmt.Fprintf(r.app.Out, "  %s  %s\n", PromptStyle.Render(fmt.Sprintf("%-12s", c.cmd)), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.app.Out)
}

func (r *chatREPL) printSummary() {
	if r.args.Quiet || r.turns == 0 {
		return
	}
	msg := fmt.Sprintf("%d %s in %s", r.turns, plural(r.turns, "turn", "turns"), time.Since(r.started).Round(time.Second))
	if id := r.app.Chat.Current(); id != "" && !model.IsLocalID(id) {
		msg += " | chat " + id
	}
	fmt.Fprintln(r.app.Err, DimStyle.Render(msg))
}

func orDefault(agent string) string {
	if agent == "" {
		return "(server default)"
	}
	return agent
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
