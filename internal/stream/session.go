// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is the state of one in-flight stream.
type Session struct {
	ID        string
	StartedAt time.Time
	Timeout   time.Duration
	Heartbeat time.Duration

	lastActivity atomic.Int64 // unix nanos
	retired      atomic.Bool
	cancel       context.CancelCauseFunc

	mu  sync.Mutex
	buf strings.Builder
}

func newSession(timeout, heartbeat time.Duration, cancel context.CancelCauseFunc) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		Timeout:   timeout,
		Heartbeat: heartbeat,
		cancel:    cancel,
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

// Touch records that bytes just arrived.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Idle returns the time since bytes last arrived.
func (s *Session) Idle() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

// Elapsed returns the time since the stream started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}

// Text returns the answer accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Len returns the accumulated answer size in bytes.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

func (s *Session) append(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(text)
	return s.buf.Len()
}

// Retired reports whether the stream has finished.
func (s *Session) Retired() bool {
	return s.retired.Load()
}

// Supervisor owns the single active Session. Starting a new stream cancels
// the previous one.
type Supervisor struct {
	mu     sync.Mutex
	active *Session
}

// NewSupervisor creates an idle Supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Begin starts a Session under parent, cancelling whatever was active.
// The returned context is cancelled by Stop, by a later Begin, or by parent.
func (sv *Supervisor) Begin(parent context.Context, timeout, heartbeat time.Duration) (*Session, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)
	s := newSession(timeout, heartbeat, cancel)

	sv.mu.Lock()
	prev := sv.active
	sv.active = s
	sv.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrSuperseded)
	}
	return s, ctx
}

// Stop cancels the active stream. It reports whether one was running.
func (sv *Supervisor) Stop() bool {
	sv.mu.Lock()
	s := sv.active
	sv.mu.Unlock()

	if s == nil || s.Retired() {
		return false
	}
	s.cancel(ErrUserCancelled)
	return true
}

// Active returns the running Session, or nil.
func (sv *Supervisor) Active() *Session {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.active
}

// retire marks s finished, releases its context and clears it if it is
// still the active one.
func (sv *Supervisor) retire(s *Session) {
	s.retired.Store(true)
	s.cancel(nil)

	sv.mu.Lock()
	if sv.active == s {
		sv.active = nil
	}
	sv.mu.Unlock()
}
