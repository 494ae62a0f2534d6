// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one conversation turn end to end.
//
// A Controller ties the session cache to the streamer: it records the
// user's prompt and an empty assistant placeholder in the cache, streams
// the answer with the chat's earlier turns as history, then writes the
// final text into the placeholder exactly once.
//
// # Usage
//
//	ctl := session.NewController(store, streamer)
//	res, err := ctl.Send(ctx, chatID, "hello", session.Options{
//	    OnChunk: func(c stream.Chunk) { fmt.Print(c.Content) },
//	})
//
// Stop cancels the turn in flight. The partial answer is kept.
package session
