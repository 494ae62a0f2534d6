// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/chatcore/internal/api"
	"github.com/jeranaias/chatcore/internal/model"
	"github.com/jeranaias/chatcore/internal/tokenstore"
)

// maxTokenLen bounds a token read from stdin.
const maxTokenLen = 16 << 10

// HandleLogin stores a bearer token in the local token store. The token
// comes from --token, piped stdin, or a hidden terminal prompt. Unless
// --no-verify is given it is checked against /usage before it is saved.
func HandleLogin(ctx context.Context, app *App, args Args) error {
	token, err := readToken(app, args)
	if err != nil {
		return err
	}

	var usage *model.UsageLimits
	if !args.Parser.Bool("no-verify") {
		client := api.NewClient(app.Config.API.BaseURL, tokenstore.Static(token)).
			WithTimeout(app.Config.API.RequestTimeout()).
			WithLogger(app.Log)
		usage, err = client.GetUsage(ctx)
		if err != nil {
			return fmt.Errorf("verify token: %w", err)
		}
	}

	store, err := app.tokenStore()
	if err != nil {
		return err
	}
	if err := store.SetToken(ctx, token); err != nil {
		return err
	}
	app.Log.Info("token stored")

	if args.JSON {
		return NewJSONResponse("login", map[string]any{"stored": true, "usage": usage}).Write(app.Out)
	}
	fmt.Fprintln(app.Out, SuccessStyle.Render("Signed in."))
	if usage != nil && !args.Quiet {
		writeUsage(app.Out, usage, time.Now())
	}
	if app.Config.Auth.Token != "" {
		app.status(args, "%s", WarningStyle.Render("note: CHATCORE_TOKEN is set and overrides the stored token"))
	}
	return nil
}

// HandleLogout removes the stored token.
func HandleLogout(ctx context.Context, app *App, args Args) error {
	store, err := app.tokenStore()
	if err != nil {
		return err
	}
	if err := store.ClearToken(ctx); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("logout", map[string]any{"cleared": true}).Write(app.Out)
	}
	fmt.Fprintln(app.Out, SuccessStyle.Render("Signed out."))
	return nil
}

func readToken(app *App, args Args) (string, error) {
	token := args.Parser.Flag("token", "t")
	if token == "" {
		if f, ok := app.In.(*os.File); ok && f == os.Stdin && IsTTY() {
			fmt.Fprint(app.Err, "Token: ")
			// SECURITY: no echo while typing the token.
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(app.Err)
			if err != nil {
				return "", fmt.Errorf("read token: %w", err)
			}
			token = string(b)
		} else {
			b, err := io.ReadAll(io.LimitReader(app.In, maxTokenLen))
			if err != nil {
				return "", fmt.Errorf("read token from stdin: %w", err)
			}
			token = string(b)
		}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingArgument("token", "chatcore login [--token TOKEN]")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return "", NewUsageError("token must not contain whitespace")
	}
	return token, nil
}

// tokenStore returns the open token store, opening it when the token came
// from the environment.
func (a *App) tokenStore() (*tokenstore.Store, error) {
	if a.Tokens != nil {
		return a.Tokens, nil
	}
	store, err := openTokenStore(a.Config)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	a.Tokens = store
	a.closers = append(a.closers, store)
	return store, nil
}
