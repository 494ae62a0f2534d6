// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatcore/internal/api"
	"github.com/jeranaias/chatcore/internal/config"
	"github.com/jeranaias/chatcore/internal/logging"
	"github.com/jeranaias/chatcore/internal/model"
)

// =============================================================================
// FAKES
// =============================================================================

var errOffline = errors.New("offline")

type fakeRemote struct {
	mu       sync.Mutex
	chats    []model.StoredChat
	messages map[string][]model.StoredMessage
	usage    *model.UsageLimits

	listErr, msgErr, deleteErr, usageErr error

	listCalls, msgCalls, deleteCalls, usageCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		chats: []model.StoredChat{
			{ID: "c1", Title: "First", Model: "m1"},
			{ID: "c2", Title: "Second"},
		},
		messages: map[string][]model.StoredMessage{
			"c1": {
				{ID: "m1", ChatID: "c1", Role: model.RoleUser, Content: "hi"},
				{ID: "m2", ChatID: "c1", Role: model.RoleAssistant, Content: "hello"},
			},
			"c2": {},
		},
		usage: &model.UsageLimits{Tier: "free", MessagesUsed: 3, MessagesLimit: 10},
	}
}

func (f *fakeRemote) ListChats(ctx context.Context, limit, offset int) ([]model.StoredChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.StoredChat(nil), f.chats...), nil
}

func (f *fakeRemote) GetMessages(ctx context.Context, id string) ([]model.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgCalls++
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	msgs, ok := f.messages[id]
	if !ok {
		return nil, &api.TransportError{Status: 404}
	}
	return append([]model.StoredMessage(nil), msgs...), nil
}

func (f *fakeRemote) DeleteChat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeRemote) GetUsage(ctx context.Context) (*model.UsageLimits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usageCalls++
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	u := *f.usage
	return &u, nil
}

func (f *fakeRemote) set(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeRemote, *clock) {
	t.Helper()
	r := newFakeRemote()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := New(r, Options{Logger: logging.Discard(), Now: clk.Now})
	return s, r, clk
}

// =============================================================================
// LIST
// =============================================================================

func TestListChats_FreshnessWindow(t *testing.T) {
	s, r, clk := newTestStore(t)
	ctx := context.Background()

	assert.Len(t, s.ListChats(ctx, false), 2)
	assert.Len(t, s.ListChats(ctx, false), 2)
	assert.Equal(t, 1, r.listCalls)

	clk.Advance(4*time.Minute + 59*time.Second)
	s.ListChats(ctx, false)
	assert.Equal(t, 1, r.listCalls, "still fresh")

	clk.Advance(2 * time.Second)
	s.ListChats(ctx, false)
	assert.Equal(t, 2, r.listCalls, "expired")

	s.ListChats(ctx, true)
	assert.Equal(t, 3, r.listCalls, "forced")
}

func TestListChats_ReplacesWholesale(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	s.ListChats(ctx, false)

	r.set(func(f *fakeRemote) { f.chats = []model.StoredChat{{ID: "c9"}} })
	got := s.ListChats(ctx, true)
	require.Len(t, got, 1)
	assert.Equal(t, "c9", got[0].ID)
}

func TestListChats_FailureServesLastGood(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()

	r.set(func(f *fakeRemote) { f.listErr = errOffline })
	assert.Empty(t, s.ListChats(ctx, false), "nothing cached yet")

	r.set(func(f *fakeRemote) { f.listErr = nil })
	require.Len(t, s.ListChats(ctx, true), 2)

	r.set(func(f *fakeRemote) { f.listErr = errOffline })
	assert.Len(t, s.ListChats(ctx, true), 2)
}

func TestListChats_ReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(t)
	got := s.ListChats(context.Background(), false)
	got[0].Title = "mutated"
	assert.Equal(t, "First", s.ListChats(context.Background(), false)[0].Title)
}

func TestInvalidateList(t *testing.T) {
	s, r, _ := newTestStore(t)
	s.ListChats(context.Background(), false)
	s.InvalidateList()
	s.ListChats(context.Background(), false)
	assert.Equal(t, 2, r.listCalls)
}

// =============================================================================
// GET CHAT
// =============================================================================

func TestGetChat_TwiceWithinWindowFetchesOnce(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetChat(ctx, "c1", false)
	require.NoError(t, err)
	second, err := s.GetChat(ctx, "c1", false)
	require.NoError(t, err)

	assert.Equal(t, 1, r.msgCalls)
	assert.Equal(t, 1, r.listCalls)
	assert.Equal(t, first, second)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "m1", first.Model)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, "hello", first.Messages[1].Content)
}

func TestGetChat_ExpiryAndForce(t *testing.T) {
	s, r, clk := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetChat(ctx, "c1", false)
	require.NoError(t, err)
	_, err = s.GetChat(ctx, "c1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, r.msgCalls)

	clk.Advance(DefaultFreshness)
	_, err = s.GetChat(ctx, "c1", false)
	require.NoError(t, err)
	assert.Equal(t, 3, r.msgCalls)
}

func TestGetChat_UsesCachedListForMetadata(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	s.ListChats(ctx, false)

	sess, err := s.GetChat(ctx, "c2", false)
	require.NoError(t, err)
	assert.Equal(t, "Second", sess.Title)
	assert.Equal(t, 1, r.listCalls, "metadata came from the cached list")
}

func TestGetChat_RefreshesListWhenMetadataMissing(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	s.ListChats(ctx, false)

	r.set(func(f *fakeRemote) {
		f.chats = append(f.chats, model.StoredChat{ID: "c3", Title: "Third"})
		f.messages["c3"] = nil
	})
	sess, err := s.GetChat(ctx, "c3", false)
	require.NoError(t, err)
	assert.Equal(t, "Third", sess.Title)
	assert.Equal(t, 2, r.listCalls)
}

func TestGetChat_UnlistedChatGetsBareMetadata(t *testing.T) {
	s, r, _ := newTestStore(t)
	r.set(func(f *fakeRemote) { f.messages["hidden"] = nil })

	sess, err := s.GetChat(context.Background(), "hidden", false)
	require.NoError(t, err)
	assert.Equal(t, "hidden", sess.ID)
	assert.Equal(t, NewChatTitle, sess.Title)
}

func TestGetChat_FailureFallsBack(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("nothing cached", func(t *testing.T) {
		r.set(func(f *fakeRemote) { f.msgErr = errOffline })
		sess, err := s.GetChat(ctx, "c1", false)
		assert.Nil(t, sess)
		assert.ErrorIs(t, err, errOffline)
	})

	t.Run("cached copy", func(t *testing.T) {
		r.set(func(f *fakeRemote) { f.msgErr = nil })
		_, err := s.GetChat(ctx, "c1", false)
		require.NoError(t, err)

		r.set(func(f *fakeRemote) { f.msgErr = errOffline })
		sess, err := s.GetChat(ctx, "c1", true)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Len(t, sess.Messages, 2)
	})
}

func TestGetChat_ReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(t)
	sess, err := s.GetChat(context.Background(), "c1", false)
	require.NoError(t, err)
	sess.Messages[0].Content = "mutated"
	sess.Messages = append(sess.Messages, model.StoredMessage{})

	again, err := s.GetChat(context.Background(), "c1", false)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)
	assert.Len(t, again.Messages, 2)
}

// =============================================================================
// LOCAL WRITES
// =============================================================================

func TestCreateLocalChat(t *testing.T) {
	s, r, clk := newTestStore(t)

	sess := s.CreateLocalChat()
	assert.True(t, model.IsLocalID(sess.ID))
	assert.True(t, sess.Local)
	assert.Empty(t, sess.Messages)
	assert.Equal(t, DefaultModel, sess.Model)
	assert.NotEqual(t, sess.ID, s.CreateLocalChat().ID)

	clk.Advance(time.Hour)
	got, err := s.GetChat(context.Background(), sess.ID, true)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Zero(t, r.msgCalls, "local chats are never fetched")
}

func TestGetChat_UnknownLocalID(t *testing.T) {
	s, r, _ := newTestStore(t)
	_, err := s.GetChat(context.Background(), "local-nope", false)
	assert.ErrorIs(t, err, ErrUnknownLocalChat)
	assert.Zero(t, r.msgCalls)
}

func TestAppendMessage(t *testing.T) {
	s, _, _ := newTestStore(t)
	sess := s.CreateLocalChat()

	assert.True(t, s.AppendMessage(sess.ID, model.StoredMessage{Role: model.RoleUser, Content: "q"}))
	assert.False(t, s.AppendMessage("absent", model.StoredMessage{Role: model.RoleUser, Content: "q"}))

	got, err := s.GetChat(context.Background(), sess.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, sess.ID, got.Messages[0].ChatID)
	assert.NotEmpty(t, got.Messages[0].ID)
	assert.False(t, got.Messages[0].CreatedAt.IsZero())
	assert.False(t, s.Cached("absent"))
}

func TestUpdateLastMessage(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.CreateLocalChat()

	assert.False(t, s.UpdateLastMessage(sess.ID, "x"), "no messages")

	s.AppendMessage(sess.ID, model.StoredMessage{Role: model.RoleUser, Content: "question"})
	assert.False(t, s.UpdateLastMessage(sess.ID, "overwrite"), "user-authored last entry")
	got, _ := s.GetChat(ctx, sess.ID, false)
	assert.Equal(t, "question", got.Messages[0].Content)

	s.AppendMessage(sess.ID, model.StoredMessage{Role: model.RoleAssistant})
	assert.True(t, s.UpdateLastMessage(sess.ID, "answer"))
	got, _ = s.GetChat(ctx, sess.ID, false)
	assert.Equal(t, "question", got.Messages[0].Content)
	assert.Equal(t, "answer", got.Messages[1].Content)

	assert.False(t, s.UpdateLastMessage("absent", "x"))
}

func TestUpdateMessage(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.CreateLocalChat()

	s.AppendMessage(sess.ID, model.StoredMessage{ID: "u-1", Role: model.RoleUser, Content: "first"})
	s.AppendMessage(sess.ID, model.StoredMessage{ID: "a-1", Role: model.RoleAssistant})
	s.AppendMessage(sess.ID, model.StoredMessage{ID: "u-2", Role: model.RoleUser, Content: "second"})
	s.AppendMessage(sess.ID, model.StoredMessage{ID: "a-2", Role: model.RoleAssistant})

	assert.True(t, s.UpdateMessage(sess.ID, "a-1", "one"))
	assert.False(t, s.UpdateMessage(sess.ID, "u-2", "overwrite"), "user-authored entry")
	assert.False(t, s.UpdateMessage(sess.ID, "missing", "x"))
	assert.False(t, s.UpdateMessage("absent", "a-1", "x"))

	got, err := s.GetChat(ctx, sess.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "one", got.Messages[1].Content)
	assert.Equal(t, "second", got.Messages[2].Content)
	assert.Empty(t, got.Messages[3].Content)
}

func TestPromote(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.CreateLocalChat()
	s.AppendMessage(sess.ID, model.StoredMessage{Role: model.RoleUser, Content: "q"})

	assert.False(t, s.Promote(sess.ID, ""))
	assert.False(t, s.Promote("local-missing", "srv"))
	require.True(t, s.Promote(sess.ID, "srv-7"))

	assert.False(t, s.Cached(sess.ID))
	got, err := s.GetChat(ctx, "srv-7", false)
	require.NoError(t, err)
	assert.False(t, got.Local)
	assert.Equal(t, "srv-7", got.Messages[0].ChatID)
	assert.Zero(t, r.msgCalls, "promoted entry is fresh")
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteChat_FailureKeepsCaches(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.GetChat(ctx, "c1", false)
	require.NoError(t, err)

	r.set(func(f *fakeRemote) { f.deleteErr = &api.TransportError{Status: 500} })
	err = s.DeleteChat(ctx, "c1")

	var te *api.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, s.Cached("c1"))
	assert.Contains(t, ids(s.ListChats(ctx, false)), "c1")
}

func TestDeleteChat_SuccessEvictsBoth(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.GetChat(ctx, "c1", false)
	require.NoError(t, err)

	require.NoError(t, s.DeleteChat(ctx, "c1"))
	assert.Equal(t, 1, r.deleteCalls)
	assert.False(t, s.Cached("c1"))
	assert.Equal(t, []string{"c2"}, ids(s.ListChats(ctx, false)))
}

func TestDeleteChat_LocalSkipsServer(t *testing.T) {
	s, r, _ := newTestStore(t)
	sess := s.CreateLocalChat()
	require.NoError(t, s.DeleteChat(context.Background(), sess.ID))
	assert.Zero(t, r.deleteCalls)
	assert.False(t, s.Cached(sess.ID))
}

func ids(chats []model.StoredChat) []string {
	out := make([]string, 0, len(chats))
	for _, c := range chats {
		out = append(out, c.ID)
	}
	return out
}

// =============================================================================
// USAGE AND LIFECYCLE
// =============================================================================

func TestUsage(t *testing.T) {
	s, r, clk := newTestStore(t)
	ctx := context.Background()

	r.set(func(f *fakeRemote) { f.usageErr = errOffline })
	_, err := s.Usage(ctx, false)
	assert.ErrorIs(t, err, errOffline)

	r.set(func(f *fakeRemote) { f.usageErr = nil })
	u, err := s.Usage(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 7, u.Remaining())

	_, _ = s.Usage(ctx, false)
	assert.Equal(t, 2, r.usageCalls)

	clk.Advance(10 * time.Minute)
	r.set(func(f *fakeRemote) { f.usageErr = errOffline })
	u, err = s.Usage(ctx, false)
	require.NoError(t, err, "stale value beats an error")
	assert.Equal(t, "free", u.Tier)
}

func TestClear(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	_, _ = s.GetChat(ctx, "c1", false)
	_, _ = s.Usage(ctx, false)

	s.Clear()
	assert.False(t, s.Cached("c1"))
	s.ListChats(ctx, false)
	assert.Equal(t, 2, r.listCalls)
}

func TestConcurrentAccess(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	local := s.CreateLocalChat()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.ListChats(ctx, i%3 == 0)
			_, _ = s.GetChat(ctx, "c1", i%2 == 0)
			s.AppendMessage(local.ID, model.StoredMessage{Role: model.RoleAssistant})
			s.UpdateLastMessage(local.ID, "x")
		}(i)
	}
	wg.Wait()

	got, err := s.GetChat(ctx, local.ID, false)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 20)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Default().Cache)
	assert.Equal(t, 5*time.Minute, opts.Freshness)
	assert.Equal(t, 50, opts.ListLimit)

	s := New(newFakeRemote(), Options{})
	assert.Equal(t, DefaultFreshness, s.opts.Freshness)
	assert.Equal(t, DefaultListLimit, s.opts.ListLimit)
}

func TestZeroFreshnessAlwaysRefetches(t *testing.T) {
	r := newFakeRemote()
	opts := OptionsFromConfig(config.CacheConfig{FreshnessSecs: 0, ListLimit: 10})
	opts.Logger = logging.Discard()
	s := New(r, opts)
	s.ListChats(context.Background(), false)
	s.ListChats(context.Background(), false)
	assert.Equal(t, 2, r.listCalls)
}
