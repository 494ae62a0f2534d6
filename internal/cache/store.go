// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/chatcore/internal/config"
	"github.com/jeranaias/chatcore/internal/logging"
	"github.com/jeranaias/chatcore/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultFreshness is how long a cached entry is served without refetch.
	DefaultFreshness = 5 * time.Minute

	// DefaultListLimit is the page size requested from GET /chats.
	DefaultListLimit = 50

	// DefaultModel tags chats created locally.
	DefaultModel = "default"

	// NewChatTitle is the title of a chat the server has not named yet.
	NewChatTitle = "New Chat"
)

// Remote is the subset of the API the cache reads through.
// *api.Client implements it.
type Remote interface {
	ListChats(ctx context.Context, limit, offset int) ([]model.StoredChat, error)
	GetMessages(ctx context.Context, chatID string) ([]model.StoredMessage, error)
	DeleteChat(ctx context.Context, chatID string) error
	GetUsage(ctx context.Context) (*model.UsageLimits, error)
}

// Options tune a Store.
type Options struct {
	// Freshness of zero selects DefaultFreshness; negative always refetches.
	Freshness    time.Duration
	ListLimit    int
	DefaultModel string
	Logger       logrus.FieldLogger

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the cache section of the configuration. A
// freshness of zero seconds disables caching of remote reads.
func OptionsFromConfig(c config.CacheConfig) Options {
	opts := Options{
		Freshness:    c.Freshness(),
		ListLimit:    c.ListLimit,
		DefaultModel: c.DefaultModel,
	}
	if opts.Freshness == 0 {
		opts.Freshness = -1
	}
	return opts
}

// =============================================================================
// STORE
// =============================================================================

type entry struct {
	session   *model.ChatSession
	fetchedAt time.Time
}

// Store is the in-memory mirror. It is safe for concurrent use; network
// calls are made without holding the lock and the last writer wins.
type Store struct {
	remote Remote
	opts   Options
	log    logrus.FieldLogger

	mu       sync.RWMutex
	list     []model.StoredChat
	listAt   time.Time
	sessions map[string]*entry
	usage    *model.UsageLimits
	usageAt  time.Time
}

// New creates an empty Store over remote.
func New(remote Remote, opts Options) *Store {
	if opts.Freshness < 0 {
		opts.Freshness = 0
	} else if opts.Freshness == 0 {
		opts.Freshness = DefaultFreshness
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultListLimit
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = DefaultModel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		remote:   remote,
		opts:     opts,
		log:      logging.Or(opts.Logger).WithField("component", "cache"),
		sessions: make(map[string]*entry),
	}
}

func (s *Store) fresh(at time.Time) bool {
	return !at.IsZero() && s.opts.Now().Sub(at) < s.opts.Freshness
}

// =============================================================================
// CHAT LIST
// =============================================================================

// ListChats returns the chat summaries. The cached list is returned while
// fresh unless force is set. A failed refresh returns the last good list
// and never an error.
func (s *Store) ListChats(ctx context.Context, force bool) []model.StoredChat {
	s.mu.RLock()
	if !force && s.fresh(s.listAt) {
		out := append([]model.StoredChat(nil), s.list...)
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	chats, err := s.remote.ListChats(ctx, s.opts.ListLimit, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.WithError(err).Warn("chat list refresh failed, serving cached list")
		return append([]model.StoredChat(nil), s.list...)
	}
	s.list = append([]model.StoredChat(nil), chats...)
	s.listAt = s.opts.Now()
	return append([]model.StoredChat(nil), s.list...)
}

// InvalidateList marks the list stale so the next ListChats refetches.
func (s *Store) InvalidateList() {
	s.mu.Lock()
	s.listAt = time.Time{}
	s.mu.Unlock()
}

// findMeta looks id up in the cached list and refreshes the list once
// when it is not there.
func (s *Store) findMeta(ctx context.Context, id string) (model.StoredChat, bool) {
	s.mu.RLock()
	for _, c := range s.list {
		if c.ID == id {
			s.mu.RUnlock()
			return c, true
		}
	}
	s.mu.RUnlock()

	for _, c := range s.ListChats(ctx, true) {
		if c.ID == id {
			return c, true
		}
	}
	return model.StoredChat{}, false
}

// =============================================================================
// CHAT SESSIONS
// =============================================================================

// GetChat returns the chat with its messages. A cached copy is returned
// while fresh unless force is set; local chats never expire. On a miss the
// metadata and messages are fetched concurrently. If the fetch fails the
// previously cached copy is returned; with nothing cached the result is
// nil together with the fetch error.
func (s *Store) GetChat(ctx context.Context, id string, force bool) (*model.ChatSession, error) {
	s.mu.RLock()
	e := s.sessions[id]
	if e != nil && (e.session.Local || (!force && s.fresh(e.fetchedAt))) {
		out := e.session.Clone()
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	if model.IsLocalID(id) {
		return nil, fmt.Errorf("chat %s: %w", id, ErrUnknownLocalChat)
	}

	var (
		meta     model.StoredChat
		found    bool
		messages []model.StoredMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		meta, found = s.findMeta(gctx, id)
		return nil
	})
	g.Go(func() error {
		var err error
		messages, err = s.remote.GetMessages(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		log := s.log.WithError(err).WithField("chat_id", id)
		s.mu.RLock()
		defer s.mu.RUnlock()
		if e := s.sessions[id]; e != nil {
			log.Warn("chat fetch failed, serving cached copy")
			return e.session.Clone(), nil
		}
		log.Warn("chat fetch failed")
		return nil, fmt.Errorf("fetch chat %s: %w", id, err)
	}
	if !found {
		s.log.WithField("chat_id", id).Debug("chat not in list, using bare metadata")
		meta = model.StoredChat{ID: id, Title: NewChatTitle}
	}

	sess := assemble(meta, messages)
	s.mu.Lock()
	s.sessions[id] = &entry{session: sess, fetchedAt: s.opts.Now()}
	s.mu.Unlock()
	return sess.Clone(), nil
}

func assemble(meta model.StoredChat, messages []model.StoredMessage) *model.ChatSession {
	return &model.ChatSession{
		ID:        meta.ID,
		Title:     meta.Title,
		Model:     meta.Model,
		AgentID:   meta.AgentID,
		Messages:  append([]model.StoredMessage(nil), messages...),
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}
}

// CreateLocalChat caches a new empty chat under a client-generated id.
func (s *Store) CreateLocalChat() *model.ChatSession {
	now := s.opts.Now()
	sess := &model.ChatSession{
		ID:        model.LocalIDPrefix + uuid.NewString(),
		Title:     NewChatTitle,
		Model:     s.opts.DefaultModel,
		CreatedAt: now,
		UpdatedAt: now,
		Local:     true,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess, fetchedAt: now}
	s.mu.Unlock()
	return sess.Clone()
}

// AppendMessage adds msg to a cached chat. It reports false, and does
// nothing, when the chat is not cached.
func (s *Store) AppendMessage(chatID string, msg model.StoredMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.sessions[chatID]
	if e == nil {
		return false
	}
	now := s.opts.Now()
	if msg.ID == "" {
		msg.ID = model.LocalIDPrefix + uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.ChatID = chatID
	e.session.Messages = append(e.session.Messages, msg)
	e.session.UpdatedAt = now
	return true
}

// UpdateLastMessage replaces the content of the final message when it is
// not user-authored. It reports whether anything changed.
func (s *Store) UpdateLastMessage(chatID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.sessions[chatID]
	if e == nil {
		return false
	}
	last := e.session.LastMessage()
	if last == nil || last.Role == model.RoleUser {
		return false
	}
	last.Content = text
	e.session.UpdatedAt = s.opts.Now()
	return true
}

// UpdateMessage replaces the content of the message msgID in chatID when
// it is not user-authored. A turn finalizes its own placeholder this way,
// so a newer turn appended after it is left alone.
func (s *Store) UpdateMessage(chatID, msgID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.sessions[chatID]
	if e == nil {
		return false
	}
	msgs := e.session.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID != msgID {
			continue
		}
		if msgs[i].Role == model.RoleUser {
			return false
		}
		msgs[i].Content = text
		e.session.UpdatedAt = s.opts.Now()
		return true
	}
	return false
}

// Promote re-keys a local chat under the id the server assigned.
func (s *Store) Promote(localID, serverID string) bool {
	if localID == serverID || serverID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.sessions[localID]
	if e == nil {
		return false
	}
	delete(s.sessions, localID)
	e.session.ID = serverID
	e.session.Local = false
	for i := range e.session.Messages {
		e.session.Messages[i].ChatID = serverID
	}
	e.fetchedAt = s.opts.Now()
	s.sessions[serverID] = e
	return true
}

// DeleteChat deletes the chat on the server and evicts it from the list
// and session caches. On failure the caches are left untouched. Local
// chats are only evicted.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	if !model.IsLocalID(id) {
		if err := s.remote.DeleteChat(ctx, id); err != nil {
			return fmt.Errorf("delete chat %s: %w", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	kept := s.list[:0:0]
	for _, c := range s.list {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.list = kept
	return nil
}

// Cached reports whether a chat is in the session cache, without fetching.
func (s *Store) Cached(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// =============================================================================
// USAGE
// =============================================================================

// Usage returns the caller's quota with the same freshness and fallback
// rules as the chat list. An error is returned only when nothing is cached.
func (s *Store) Usage(ctx context.Context, force bool) (*model.UsageLimits, error) {
	s.mu.RLock()
	if !force && s.usage != nil && s.fresh(s.usageAt) {
		u := *s.usage
		s.mu.RUnlock()
		return &u, nil
	}
	s.mu.RUnlock()

	u, err := s.remote.GetUsage(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.usage != nil {
			s.log.WithError(err).Warn("usage refresh failed, serving cached value")
			cp := *s.usage
			return &cp, nil
		}
		return nil, fmt.Errorf("fetch usage: %w", err)
	}
	cp := *u
	s.usage = &cp
	s.usageAt = s.opts.Now()
	return u, nil
}

// Clear drops everything, as after signing out.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.listAt = time.Time{}
	s.sessions = make(map[string]*entry)
	s.usage = nil
	s.usageAt = time.Time{}
}
