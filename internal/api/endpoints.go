// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jeranaias/chatcore/internal/model"
)

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	// Message is the new prompt; Messages is the flattened history ending
	// with the same prompt.
	Message          string              `json:"message"`
	Messages         []model.ChatMessage `json:"messages"`
	AgentID          string              `json:"agent_id,omitempty"`
	ChatID           string              `json:"chat_id,omitempty"`
	ExtendedThinking bool                `json:"extended_thinking"`
	Stream           bool                `json:"stream"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Content  string `json:"content"`
	Response string `json:"response"`
	ChatID   string `json:"chat_id"`
}

// Text returns the answer regardless of which field the server used.
func (r *ChatResponse) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Response
}

// Chat performs a non-streaming completion.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAgents returns the agent catalogue.
func (c *Client) ListAgents(ctx context.Context) ([]model.Agent, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/agents", nil, &raw); err != nil {
		return nil, err
	}
	agents, err := unwrapList[model.Agent](raw, "agents")
	if err != nil {
		return nil, fmt.Errorf("failed to parse agents: %w", err)
	}
	return agents, nil
}

// GetAgent returns one agent.
func (c *Client) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	var agent model.Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(id), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListChats returns one page of chat metadata.
func (c *Client) ListChats(ctx context.Context, limit, offset int) ([]model.StoredChat, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	path := "/chats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	chats, err := unwrapList[model.StoredChat](raw, "chats")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chats: %w", err)
	}
	return chats, nil
}

// GetMessages returns every message of a chat in order.
func (c *Client) GetMessages(ctx context.Context, chatID string) ([]model.StoredMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", nil, &raw); err != nil {
		return nil, err
	}
	msgs, err := unwrapList[model.StoredMessage](raw, "messages")
	if err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return msgs, nil
}

// DeleteChat deletes a chat on the server.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+url.PathEscape(chatID), nil, nil)
}

// GetUsage returns the caller's quota.
func (c *Client) GetUsage(ctx context.Context) (*model.UsageLimits, error) {
	var usage model.UsageLimits
	if err := c.do(ctx, http.MethodGet, "/usage", nil, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// Personal calls an endpoint under /personal/ and returns the raw JSON
// response. Only GET, POST and PUT are accepted.
func (c *Client) Personal(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, method)
	}

	clean, err := cleanPersonalPath(path)
	if err != nil {
		return nil, err
	}

	var in any
	if len(body) > 0 && method != http.MethodGet {
		in = body
	}
	var out json.RawMessage
	if err := c.do(ctx, method, "/personal/"+clean, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cleanPersonalPath strips the namespace prefix and rejects traversal.
func cleanPersonalPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "://") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	p = strings.TrimLeft(p, "/")
	p = strings.TrimPrefix(p, "personal/")

	pathPart, _, _ := strings.Cut(p, "?")
	if pathPart == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(pathPart, "/") {
		if seg == ".." || seg == "." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return p, nil
}
