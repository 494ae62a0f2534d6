// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatcore command line.
//
// # Commands
//
//   - ask: one prompt, answer streamed to stdout
//   - chat: interactive conversation with history and Ctrl+C to stop
//   - chats: list, show and delete stored conversations
//   - agents, usage, personal: account and catalogue queries
//   - login, logout: manage the stored bearer token
//   - config: show, get and set configuration values
//
// Answers go to stdout. Status lines, progress notices and errors go to
// stderr so output can be piped.
package cli
