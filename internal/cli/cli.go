// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the command selected on the command line.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdChats
	CmdAgents
	CmdUsage
	CmdPersonal
	CmdLogin
	CmdLogout
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdChat:     "chat",
	CmdAsk:      "ask",
	CmdChats:    "chats",
	CmdAgents:   "agents",
	CmdUsage:    "usage",
	CmdPersonal: "personal",
	CmdLogin:    "login",
	CmdLogout:   "logout",
	CmdConfig:   "config",
	CmdVersion:  "version",
	CmdHelp:     "help",
}

// String returns the canonical command name.
func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// boolFlags never take a value.
var boolFlags = []string{
	"quiet", "q", "verbose", "v", "json", "think", "no-stream",
	"help", "h", "version", "yes", "y", "force", "no-verify",
}

// Args holds the parsed command line.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	Agent   string
	ChatID  string

	// Prompt flags
	Think    bool
	NoStream bool

	// Subcommand is the word after the command, e.g. "delete" in
	// "chats delete".
	Subcommand string
	Query      string

	// Unknown is set when the command word was not recognised.
	Unknown string

	// Parser gives handlers access to command-specific flags and
	// positionals. Positional(0) is the command word.
	Parser *ArgParser
}

// Parse parses argv (without the program name). Flags may appear anywhere.
// With no command the interactive chat starts.
func Parse(argv []string) (Command, Args) {
	p := NewArgParser(argv, boolFlags...)
	a := Args{
		Quiet:      p.Bool("quiet", "q"),
		Verbose:    p.Bool("verbose", "v"),
		JSON:       p.Bool("json"),
		Agent:      p.Flag("agent", "a"),
		ChatID:     p.Flag("chat", "c"),
		Think:      p.Bool("think"),
		NoStream:   p.Bool("no-stream"),
		Subcommand: strings.ToLower(p.Positional(1)),
		Parser:     p,
	}

	if p.Bool("version") {
		return CmdVersion, a
	}
	if p.Bool("help", "h") {
		return CmdHelp, a
	}

	switch name := strings.ToLower(p.Positional(0)); name {
	case "", "chat":
		return CmdChat, a
	case "ask":
		a.Query = p.Join(1)
		return CmdAsk, a
	case "chats", "history", "ls":
		return CmdChats, a
	case "agents", "agent":
		return CmdAgents, a
	case "usage", "quota":
		return CmdUsage, a
	case "personal", "me":
		return CmdPersonal, a
	case "login":
		return CmdLogin, a
	case "logout":
		return CmdLogout, a
	case "config", "cfg":
		return CmdConfig, a
	case "version":
		return CmdVersion, a
	case "help":
		return CmdHelp, a
	default:
		a.Unknown = name
		return CmdHelp, a
	}
}

const usageText = `chatcore - streaming chat client

Usage:
  chatcore                              Start an interactive chat (default)
  chatcore ask "question"               Ask one question, answer streamed
  chatcore chat                         Interactive chat
  chatcore chats [list]                 List conversations
  chatcore chats show <id>              Print a conversation
  chatcore chats delete <id> [--yes]    Delete a conversation
  chatcore chats export <id> [--format markdown|json] [-o path]
                                        Save a conversation to a file
  chatcore agents [id]                  List agents or show one
  chatcore usage                        Show message quota
  chatcore personal <get|post|put> <path> [json]
                                        Call a /personal/ endpoint
  chatcore login [--token TOKEN]        Store a bearer token
  chatcore logout                       Remove the stored token
  chatcore config [show|path|keys]      Inspect configuration
  chatcore config get <key>             Print one value
  chatcore config set <key> <value>     Change one value
  chatcore version                      Show version

Prompt Flags:
  -a, --agent ID      Agent to talk to (default: api.default_agent)
  -c, --chat ID       Continue an existing conversation
  --think             Request extended thinking (doubles the deadline)
  --no-stream         Wait for the whole answer (ask only)

Global Flags:
  --json              Machine-readable output
  -q, --quiet         Minimal output
  -v, --verbose       Debug logging to stderr

Chat Commands:
  /help               Show chat commands
  /new                Start a new conversation
  /open <id>          Continue a stored conversation
  /chats              List conversations
  /agent [id]         Show or switch agent
  /think              Toggle extended thinking
  /usage              Show message quota
  /quit               Exit (also Ctrl+D)
  Ctrl+C              Stop generating; the partial answer is kept

Environment:
  CHATCORE_HOME       Config directory (default: ~/.chatcore)
  CHATCORE_API_URL    Service base URL
  CHATCORE_TOKEN      Bearer token, overrides the stored one
  CHATCORE_AGENT      Default agent
  CHATCORE_LOG_LEVEL  debug, info, warn or error

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "chatcore version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// versionInfo is the --json form of PrintVersion.
type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// HandleVersion prints version information.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", versionInfo{Version, GitCommit, BuildDate}).Write(w)
	}
	PrintVersion(w)
	return nil
}

// HandleHelp prints usage, flagging an unknown command first.
func HandleHelp(w io.Writer, args Args) error {
	if args.Unknown != "" {
		PrintUsage(w)
		return NewUsageError(fmt.Sprintf("unknown command %q", args.Unknown))
	}
	PrintUsage(w)
	return nil
}
