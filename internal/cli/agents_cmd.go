// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/chatcore/internal/model"
)

// HandleAgents lists agents, or shows one with `agents <id>`.
func HandleAgents(ctx context.Context, app *App, args Args) error {
	if id := args.Parser.Positional(1); id != "" && id != "list" {
		agent, err := app.Client.GetAgent(ctx, id)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("agents", agent).Write(app.Out)
		}
		writeAgent(app, agent)
		return nil
	}

	agents, err := app.Client.ListAgents(ctx)
	if err != nil {
		return err
	}
	if agents == nil {
		agents = []model.Agent{}
	}
	if args.JSON {
		return NewJSONResponse("agents", agents).Write(app.Out)
	}
	writeAgents(app.Out, agents, app.Config.API.DefaultAgent)
	return nil
}

func writeAgent(app *App, a *model.Agent) {
	w := app.Out
	fmt.Fprintln(w, TitleStyle.Render(a.Name))
	fmt.Fprintln(w, RenderLabel("ID:")+ValueStyle.Render(a.ID))
	if a.Model != "" {
		fmt.Fprintln(w, RenderLabel("Model:")+ValueStyle.Render(a.Model))
	}
	fmt.Fprintln(w, RenderLabel("Thinking:")+ValueStyle.Render(yesNo(a.SupportsExtendedThinking)))
	fmt.Fprintln(w, RenderLabel("Web search:")+ValueStyle.Render(yesNo(a.SupportsWebSearch)))
	if a.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, a.Description)
	}
}

// HandleUsage prints the message quota.
func HandleUsage(ctx context.Context, app *App, args Args) error {
	u, err := app.Cache.Usage(ctx, true)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("usage", u).Write(app.Out)
	}
	writeUsage(app.Out, u, time.Now())
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
