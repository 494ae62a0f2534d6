// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns the streaming chat endpoint into incremental
// callbacks and a final answer.
//
// One call to Streamer.Stream opens the request, decodes the body as UTF-8
// lines, parses "data:" records into typed chunks, accumulates the answer,
// and supervises the read loop with a per-chunk deadline and a heartbeat
// watchdog. A Supervisor guarantees that only one stream is active: starting
// a new one cancels the previous.
//
// # Outcome rules
//
//   - A "done" record completes the stream.
//   - Cancellation (Supervisor.Stop or the caller's context) returns
//     whatever text has arrived and never reports an error.
//   - Any failure after some text has arrived is downgraded to success
//     with the partial text.
//   - Failures before any text report OnError once and return the error.
//
// # Usage
//
//	s := stream.NewStreamer(client)
//	res, err := s.Stream(ctx, stream.Request{Prompt: "hi"}, stream.Handlers{
//	    OnChunk: func(c stream.Chunk) { fmt.Print(c.Content) },
//	})
package stream
