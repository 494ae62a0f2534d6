// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the transport,
// streaming and cache layers.
//
// # Key Types
//
//   - ChatMessage: role-tagged message as sent to the chat endpoints
//   - Turn: one prior user/assistant exchange of conversation history
//   - ChatSession: a cached conversation with its ordered messages
//   - StoredChat, StoredMessage: server-side shapes mirrored read-only
//   - UsageLimits, Agent: account quota and agent catalogue entries
//
// # Usage
//
// Flatten history for a streaming request:
//
//	msgs := model.FlattenHistory(turns, "What next?")
//	// [user, assistant, ..., user("What next?")]
package model
