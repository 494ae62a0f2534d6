// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache mirrors remote chat, message and usage state in memory.
//
// Reads are served from the mirror while it is younger than the freshness
// window and fall back to the last good copy when the server cannot be
// reached. Writes made during a generation (appending the user message,
// filling in the assistant reply) are local-first and are reconciled the
// next time the chat is fetched.
//
// Nothing is persisted. A Store is created once at startup and shared.
package cache
