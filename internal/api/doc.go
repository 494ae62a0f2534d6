// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the chat service.
//
// It covers the REST endpoints (agents, chats, messages, usage and the
// /personal namespace) and opens the streaming chat endpoint, handing the
// raw response body to the stream package for decoding.
//
// # Key Types
//
//   - Client: HTTP client with bearer auth, request ids and rate limiting
//   - ChatRequest: body shared by POST /chat and POST /chat/stream
//   - TransportError: any non-2xx response, with status and body
//   - TokenSource: where the bearer token comes from
//
// # Usage
//
//	client := api.NewClient(cfg.API.BaseURL, store)
//	chats, err := client.ListChats(ctx, 50, 0)
//
// # Security
//
// The Authorization header is never logged. Requests go out without it when
// no token is stored.
package api
