// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeranaias/chatcore/internal/api"
	"github.com/jeranaias/chatcore/internal/model"
	"github.com/jeranaias/chatcore/internal/session"
	"github.com/jeranaias/chatcore/internal/stream"
)

// maxStdinPrompt bounds a prompt piped on stdin.
const maxStdinPrompt = 1 << 20

// askResult is the --json form of an answer.
type askResult struct {
	ChatID    string `json:"chat_id,omitempty"`
	Text      string `json:"text"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Partial   string `json:"partial_error,omitempty"`
}

// HandleAsk sends one prompt. The prompt is taken from the arguments, or
// from stdin when it is piped. Ctrl+C stops generation and keeps what was
// received.
func HandleAsk(ctx context.Context, app *App, args Args) error {
	prompt, err := askPrompt(app, args)
	if err != nil {
		return err
	}

	if args.NoStream {
		return askOnce(ctx, app, args, prompt)
	}

	stop := notifyStop(app.Chat.Stop)
	defer stop()

	printer := newChunkPrinter(app.Out, app.Err, args.Quiet)
	opts := session.Options{
		AgentID:          args.Agent,
		ExtendedThinking: args.Think,
	}
	if !args.JSON {
		opts.OnChunk = printer.OnChunk
	}

	res, err := app.Chat.Send(ctx, args.ChatID, prompt, opts)
	if err != nil {
		return err
	}
	if args.JSON {
		out := askResult{ChatID: res.ChatID, Text: res.Text, Cancelled: res.Cancelled}
		if res.Partial != nil {
			out.Partial = res.Partial.Error()
		}
		return NewJSONResponse("ask", out).Write(app.Out)
	}

	printer.Finish()
	switch {
	case res.Cancelled:
		app.status(args, "%s", WarningStyle.Render("[Stopped]"))
	case res.Partial != nil:
		app.status(args, "%s %s", WarningStyle.Render("[Incomplete]"), stream.Describe(res.Partial))
	}
	if res.ChatID != "" && !model.IsLocalID(res.ChatID) {
		app.status(args, "%s", DimStyle.Render("chat: "+res.ChatID))
	}
	return nil
}

// askOnce uses the non-streaming endpoint.
func askOnce(ctx context.Context, app *App, args Args, prompt string) error {
	agent := args.Agent
	if agent == "" {
		agent = app.Config.API.DefaultAgent
	}
	resp, err := app.Client.Chat(ctx, api.ChatRequest{
		Message:          prompt,
		Messages:         model.FlattenHistory(nil, prompt),
		AgentID:          agent,
		ChatID:           args.ChatID,
		ExtendedThinking: args.Think,
	})
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("ask", askResult{ChatID: resp.ChatID, Text: resp.Text()}).Write(app.Out)
	}
	text := resp.Text()
	fmt.Fprint(app.Out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(app.Out)
	}
	return nil
}

func askPrompt(app *App, args Args) (string, error) {
	prompt := strings.TrimSpace(args.Query)
	if prompt == "" || prompt == "-" {
		if f, ok := app.In.(*os.File); ok && f == os.Stdin && IsTTY() {
			return "", ErrMissingArgument("question", `chatcore ask "question"`)
		}
		b, err := io.ReadAll(io.LimitReader(app.In, maxStdinPrompt))
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(b))
	}
	if prompt == "" {
		return "", ErrMissingArgument("question", `chatcore ask "question"`)
	}
	return prompt, nil
}

// notifyStop calls stop on SIGINT or SIGTERM until the returned func is
// called.
func notifyStop(stop func() bool) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sig:
				stop()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// isEmptyPrompt reports the error Send returns for blank input.
func isEmptyPrompt(err error) bool {
	return errors.Is(err, stream.ErrEmptyPrompt)
}
