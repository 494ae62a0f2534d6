// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/chatcore/internal/cache"
	"github.com/jeranaias/chatcore/internal/logging"
	"github.com/jeranaias/chatcore/internal/model"
	"github.com/jeranaias/chatcore/internal/stream"
)

// =============================================================================
// TYPES
// =============================================================================

// Options are per-turn settings.
type Options struct {
	// AgentID overrides the chat's agent and the controller default.
	AgentID          string
	ExtendedThinking bool

	// OnChunk receives streamed content, status and progress chunks.
	OnChunk func(c stream.Chunk)

	// OnError receives the user-facing message when the turn fails
	// before any text arrived.
	OnError func(message string)
}

// Result is the outcome of one turn.
type Result struct {
	// ChatID is the chat the turn was recorded in. For a new chat it is
	// the server-assigned id once known, otherwise the local id.
	ChatID    string
	Text      string
	Cancelled bool

	// Partial is the failure that cut the answer short, if any.
	Partial error
}

// Controller runs conversation turns against a cache and a streamer.
type Controller struct {
	cache        *cache.Store
	streamer     *stream.Streamer
	defaultAgent string
	log          logrus.FieldLogger

	mu      sync.Mutex
	current string
}

// NewController creates a Controller.
func NewController(store *cache.Store, streamer *stream.Streamer) *Controller {
	return &Controller{
		cache:    store,
		streamer: streamer,
		log:      logging.L(),
	}
}

// WithDefaultAgent sets the agent used when neither the turn nor the chat
// names one.
func (c *Controller) WithDefaultAgent(id string) *Controller {
	c.defaultAgent = id
	return c
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(l logrus.FieldLogger) *Controller {
	c.log = logging.Or(l)
	return c
}

// Current returns the chat the last turn was recorded in.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetCurrent selects the chat that an empty chat id in Send continues.
func (c *Controller) SetCurrent(chatID string) {
	c.mu.Lock()
	c.current = chatID
	c.mu.Unlock()
}

// Stop cancels the turn in flight. It reports whether one was running.
func (c *Controller) Stop() bool {
	return c.streamer.Stop()
}

// =============================================================================
// SEND
// =============================================================================

// Send records prompt in chatID and streams the answer. An empty chatID
// starts a new local chat.
func (c *Controller) Send(ctx context.Context, chatID, prompt string, opts Options) (Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Result{}, stream.ErrEmptyPrompt
	}

	sess, err := c.open(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	chatID = sess.ID
	history := sess.Turns()

	agent := firstNonEmpty(opts.AgentID, sess.AgentID, c.defaultAgent)
	log := c.log.WithFields(logrus.Fields{"chat_id": chatID, "agent_id": agent})
	log.WithFields(logrus.Fields{
		"history": len(history),
		"image":   stream.IsImageRequest(prompt),
		"coding":  stream.IsCodingRequest(prompt),
		"search":  stream.IsWebSearchRequest(prompt),
	}).Debug("sending prompt")

	c.cache.AppendMessage(chatID, model.StoredMessage{Role: model.RoleUser, Content: prompt})
	// The placeholder id is fixed here so the answer lands in this turn's
	// entry even if a newer turn has been appended since.
	placeholder := model.LocalIDPrefix + uuid.NewString()
	c.cache.AppendMessage(chatID, model.StoredMessage{ID: placeholder, Role: model.RoleAssistant})

	remoteID := chatID
	if sess.Local {
		remoteID = ""
	}
	res, err := c.streamer.Stream(ctx, stream.Request{
		Prompt:           prompt,
		History:          history,
		AgentID:          agent,
		ChatID:           remoteID,
		ExtendedThinking: opts.ExtendedThinking,
	}, stream.Handlers{
		OnChunk: opts.OnChunk,
		OnError: opts.OnError,
	})

	// The list gains a new chat or a new updated_at either way.
	defer c.cache.InvalidateList()

	if err != nil {
		log.WithError(err).Debug("turn failed, placeholder left empty")
		c.SetCurrent(chatID)
		return Result{ChatID: chatID}, err
	}

	c.cache.UpdateMessage(chatID, placeholder, res.Text)
	if sess.Local && res.ChatID != "" && c.cache.Promote(chatID, res.ChatID) {
		log.WithField("server_id", res.ChatID).Debug("local chat promoted")
		chatID = res.ChatID
	}
	c.SetCurrent(chatID)

	return Result{
		ChatID:    chatID,
		Text:      res.Text,
		Cancelled: res.Cancelled,
		Partial:   res.Partial,
	}, nil
}

// open resolves the chat a turn goes into. An empty id continues the
// current chat or starts a local one.
func (c *Controller) open(ctx context.Context, chatID string) (*model.ChatSession, error) {
	if chatID == "" {
		chatID = c.Current()
	}
	if chatID == "" || (model.IsLocalID(chatID) && !c.cache.Cached(chatID)) {
		return c.cache.CreateLocalChat(), nil
	}
	sess, err := c.cache.GetChat(ctx, chatID, false)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	return sess, nil
}

// NewChat forgets the current chat so the next Send starts a fresh one.
func (c *Controller) NewChat() {
	c.SetCurrent("")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
