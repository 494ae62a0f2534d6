// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/chatcore/internal/export"
	"github.com/jeranaias/chatcore/internal/model"
)

// HandleChats runs the chats command:
//
//	chats [list] [--limit N]
//	chats show <id>
//	chats delete <id> [--yes]
//	chats export <id> [--format markdown|json] [-o file|dir]
func HandleChats(ctx context.Context, app *App, args Args) error {
	switch args.Subcommand {
	case "", "list", "ls":
		return chatsList(ctx, app, args)
	case "show", "view", "open":
		return chatsShow(ctx, app, args)
	case "delete", "rm", "remove":
		return chatsDelete(ctx, app, args)
	case "export":
		return chatsExport(ctx, app, args)
	default:
		return NewUsageError(fmt.Sprintf("unknown chats subcommand %q (list, show, delete, export)", args.Subcommand))
	}
}

func chatsList(ctx context.Context, app *App, args Args) error {
	limit, err := args.Parser.FlagInt(0, "limit", "n")
	if err != nil {
		return NewUsageError(err.Error())
	}

	chats := app.Cache.ListChats(ctx, true)
	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}
	if chats == nil {
		chats = []model.StoredChat{}
	}

	if args.JSON {
		return NewJSONResponse("chats", chats).Write(app.Out)
	}
	writeChatList(app.Out, chats, time.Now())
	return nil
}

func chatsShow(ctx context.Context, app *App, args Args) error {
	id := args.Parser.Positional(2)
	if id == "" {
		id = args.ChatID
	}
	if id == "" {
		return ErrMissingArgument("chat id", "chatcore chats show <id>")
	}

	sess, err := app.Cache.GetChat(ctx, id, true)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("chats", sess).Write(app.Out)
	}
	writeMessages(app.Out, sess)
	return nil
}

func chatsDelete(ctx context.Context, app *App, args Args) error {
	id := args.Parser.Positional(2)
	if id == "" {
		return ErrMissingArgument("chat id", "chatcore chats delete <id> [--yes]")
	}

	if !args.Parser.Bool("yes", "y", "force") {
		ok, err := confirm(app, fmt.Sprintf("Delete conversation %s?", id))
		if err != nil {
			return err
		}
		if !ok {
			app.status(args, "%s", DimStyle.Render("Cancelled."))
			return nil
		}
	}

	if err := app.Cache.DeleteChat(ctx, id); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("chats", map[string]any{"deleted": id}).Write(app.Out)
	}
	fmt.Fprintf(app.Out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
	return nil
}

const exportUsage = "chatcore chats export <id> [--format markdown|json] [-o file|dir]"

// chatsExport writes a conversation to a file. -o names a file, or a
// directory when it ends in a separator or already is one.
func chatsExport(ctx context.Context, app *App, args Args) error {
	id := args.Parser.Positional(2)
	if id == "" {
		return ErrMissingArgument("chat id", exportUsage)
	}
	exp, err := export.ForFormat(args.Parser.Flag("format", "f"), export.DefaultOptions())
	if err != nil {
		return &UsageError{Reason: err.Error(), Usage: exportUsage}
	}

	sess, err := app.Cache.GetChat(ctx, id, true)
	if err != nil {
		return err
	}

	target := args.Parser.Flag("output", "o")
	var path string
	if target == "" || strings.HasSuffix(target, string(os.PathSeparator)) || isDir(target) {
		path, err = export.ToFile(sess, exp, target)
	} else {
		var data []byte
		if data, err = exp.Export(sess); err == nil {
			path, err = target, export.WriteFile(target, data)
		}
	}
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("chats", map[string]string{"chat_id": sess.ID, "path": path}).Write(app.Out)
	}
	fmt.Fprintf(app.Out, "%s %s\n", SuccessStyle.Render("Exported to"), path)
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// caller must pass --yes.
func confirm(app *App, question string) (bool, error) {
	if f, ok := app.In.(*os.File); ok && f == os.Stdin && !IsTTY() {
		return false, &TTYRequiredError{Operation: "confirm (pass --yes)"}
	}
	fmt.Fprintf(app.Err, "%s [y/N] ", question)
	line, err := bufio.NewReader(app.In).ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return false, nil
	}
	ok, perr := ParseBool(line)
	return perr == nil && ok, nil
}
