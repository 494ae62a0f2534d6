// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Buffer(t *testing.T) {
	s := newSession(time.Second, time.Second, func(error) {})
	assert.Zero(t, s.Len())
	assert.Equal(t, 2, s.append("Hi"))
	assert.Equal(t, 8, s.append(" there"))
	assert.Equal(t, "Hi there", s.Text())
	assert.NotEmpty(t, s.ID)
}

func TestSession_TouchResetsIdle(t *testing.T) {
	s := newSession(time.Second, time.Second, func(error) {})
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, s.Idle(), 20*time.Millisecond)
	s.Touch()
	assert.Less(t, s.Idle(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, s.Elapsed(), 20*time.Millisecond)
}

func TestSupervisor_StopCancelsWithUserCause(t *testing.T) {
	sv := NewSupervisor()
	assert.False(t, sv.Stop(), "idle supervisor")

	s, ctx := sv.Begin(context.Background(), time.Second, time.Second)
	assert.Same(t, s, sv.Active())
	require.True(t, sv.Stop())

	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), ErrUserCancelled)
	assert.False(t, errors.Is(context.Cause(ctx), ErrSuperseded))
}

func TestSupervisor_BeginSupersedes(t *testing.T) {
	sv := NewSupervisor()
	first, ctx1 := sv.Begin(context.Background(), time.Second, time.Second)
	second, ctx2 := sv.Begin(context.Background(), time.Second, time.Second)

	<-ctx1.Done()
	assert.ErrorIs(t, context.Cause(ctx1), ErrSuperseded)
	assert.ErrorIs(t, context.Cause(ctx1), ErrUserCancelled)
	assert.NoError(t, ctx2.Err())
	assert.Same(t, second, sv.Active())

	// Retiring the superseded session leaves the newer one active.
	sv.retire(first)
	assert.Same(t, second, sv.Active())

	sv.retire(second)
	assert.Nil(t, sv.Active())
	assert.True(t, second.Retired())
	assert.Error(t, ctx2.Err(), "retire releases the context")
}

func TestSupervisor_StopAfterRetireIsNoop(t *testing.T) {
	sv := NewSupervisor()
	s, _ := sv.Begin(context.Background(), time.Second, time.Second)
	sv.retire(s)
	assert.False(t, sv.Stop())
}

func TestCancelledKeepsCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(ErrSuperseded)
	assert.ErrorIs(t, cancelled(ctx), ErrSuperseded)

	ctx, plain := context.WithCancel(context.Background())
	plain()
	err := cancelled(ctx)
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
