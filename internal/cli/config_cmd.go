// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/jeranaias/chatcore/internal/config"
)

// HandleConfig inspects or edits the configuration file:
//
//	config [show]
//	config path
//	config keys
//	config get <key>
//	config set <key> <value>
//
// It needs no network access so it runs without an App.
func HandleConfig(w io.Writer, cfg *config.Config, args Args) error {
	p := args.Parser
	switch args.Subcommand {
	case "", "show":
		if args.JSON {
			return NewJSONResponse("config", cfg).Write(w)
		}
		fmt.Fprintln(w, cfg.String())
		return nil

	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]string{"path": path}).Write(w)
		}
		fmt.Fprintln(w, path)
		return nil

	case "keys":
		keys := config.Keys()
		if args.JSON {
			return NewJSONResponse("config", keys).Write(w)
		}
		for _, k := range keys {
			fmt.Fprintln(w, k)
		}
		return nil

	case "get":
		key := p.Positional(2)
		if key == "" {
			return ErrMissingArgument("key", "chatcore config get <key>")
		}
		v, err := cfg.Get(key)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]any{"key": key, "value": v}).Write(w)
		}
		fmt.Fprintln(w, v)
		return nil

	case "set":
		key, value := p.Positional(2), p.Join(3)
		if key == "" || p.Count() < 4 {
			return ErrMissingArgument("key and value", "chatcore config set <key> <value>")
		}
		updated := cfg.Clone()
		if err := updated.Set(key, value); err != nil {
			return err
		}
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := config.Save(updated); err != nil {
			return err
		}
		config.SetGlobal(updated)
		if args.JSON {
			return NewJSONResponse("config", map[string]any{"key": key, "value": value}).Write(w)
		}
		fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("Set"), key, value)
		return nil

	default:
		return NewUsageError(fmt.Sprintf("unknown config subcommand %q (show, path, keys, get, set)", args.Subcommand))
	}
}
