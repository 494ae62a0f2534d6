// chatcore - streaming chat client for a hosted assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jeranaias/chatcore/internal/cli"
	"github.com/jeranaias/chatcore/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches one command and returns the process exit status.
func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	// Commands that need neither the network nor the token store.
	switch cmd {
	case cli.CmdVersion:
		return report(cmd, args, cli.HandleVersion(os.Stdout, args))
	case cli.CmdHelp:
		return report(cmd, args, cli.HandleHelp(os.Stdout, args))
	}

	cfg, err := config.Load()
	if cfg == nil {
		return report(cmd, args, err)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	config.SetGlobal(cfg)

	if cmd == cli.CmdConfig {
		return report(cmd, args, cli.HandleConfig(os.Stdout, cfg, args))
	}

	app, err := cli.NewAppWithConfig(cfg, args)
	if err != nil {
		return report(cmd, args, err)
	}
	defer app.Close()

	ctx := context.Background()
	switch cmd {
	case cli.CmdAsk:
		err = cli.HandleAsk(ctx, app, args)
	case cli.CmdChats:
		err = cli.HandleChats(ctx, app, args)
	case cli.CmdAgents:
		err = cli.HandleAgents(ctx, app, args)
	case cli.CmdUsage:
		err = cli.HandleUsage(ctx, app, args)
	case cli.CmdPersonal:
		err = cli.HandlePersonal(ctx, app, args)
	case cli.CmdLogin:
		err = cli.HandleLogin(ctx, app, args)
	case cli.CmdLogout:
		err = cli.HandleLogout(ctx, app, args)
	default:
		err = cli.HandleChat(ctx, app, args)
	}
	return report(cmd, args, err)
}

// report prints err, if any, and maps it to an exit status.
func report(cmd cli.Command, args cli.Args, err error) int {
	if err == nil {
		return cli.ExitSuccess
	}
	if args.JSON {
		cli.DisplayError(os.Stdout, cmd.String(), err, true)
	} else {
		cli.DisplayError(os.Stderr, cmd.String(), err, false)
	}
	return cli.ExitCode(err)
}
