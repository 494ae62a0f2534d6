// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/chatcore/internal/api"
)

const personalUsage = "chatcore personal <get|post|put> <path> [json | --data JSON | --data @file]"

// HandlePersonal calls an endpoint in the /personal/ namespace and prints
// the response as indented JSON.
func HandlePersonal(ctx context.Context, app *App, args Args) error {
	method := args.Subcommand
	path := args.Parser.Positional(2)
	switch {
	case method == "":
		return ErrMissingArgument("method", personalUsage)
	case path == "":
		// "personal profile" is shorthand for a GET.
		if method != "get" && method != "post" && method != "put" {
			method, path = "get", args.Parser.Positional(1)
		} else {
			return ErrMissingArgument("path", personalUsage)
		}
	}

	body, err := personalBody(args)
	if err != nil {
		return err
	}

	raw, err := app.Client.Personal(ctx, method, path, body)
	if errors.Is(err, api.ErrMethodNotAllowed) || errors.Is(err, api.ErrInvalidPath) {
		return &UsageError{Reason: err.Error(), Usage: personalUsage}
	}
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("personal", raw).Write(app.Out)
	}
	return writeIndentedJSON(app.Out, raw)
}

// personalBody reads the request body from --data (inline or @file) or the
// positional after the path.
func personalBody(args Args) (json.RawMessage, error) {
	data := args.Parser.Flag("data", "d")
	if data == "" {
		data = args.Parser.Join(3)
	}
	if data == "" {
		return nil, nil
	}
	if file, ok := strings.CutPrefix(data, "@"); ok {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		data = string(b)
	}
	if !json.Valid([]byte(data)) {
		return nil, &UsageError{Reason: "request body is not valid JSON", Usage: personalUsage}
	}
	return json.RawMessage(data), nil
}

func writeIndentedJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		fmt.Fprintln(w, DimStyle.Render("(empty response)"))
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(append(raw, '\n'))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
