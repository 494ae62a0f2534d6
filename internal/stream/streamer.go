// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/chatcore/internal/api"
	"github.com/jeranaias/chatcore/internal/logging"
	"github.com/jeranaias/chatcore/internal/model"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// readSize is the body read buffer. Each read is one "chunk" for the
	// deadline and heartbeat.
	readSize = 4096

	// DefaultProgressPromptThreshold is the prompt length above which
	// progress notices are emitted. Lengths here and in the governor count
	// UTF-16 code units.
	DefaultProgressPromptThreshold = 2000

	// DefaultProgressInterval is the answer growth between notices, in the
	// same unit.
	DefaultProgressInterval = 1500
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// Opener opens the streaming endpoint. *api.Client implements it.
type Opener interface {
	OpenStream(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
}

// Request describes one prompt to stream.
type Request struct {
	Prompt           string
	History          []model.Turn
	AgentID          string
	ChatID           string
	ExtendedThinking bool
}

// Handlers are the consumer hooks. Each may be nil. They run on the
// goroutine that called Stream.
type Handlers struct {
	// OnChunk receives content chunks, status chunks and synthetic
	// progress notices.
	OnChunk func(c Chunk)

	// OnComplete receives the final text exactly once on success,
	// cancellation or downgraded failure.
	OnComplete func(text, chatID string)

	// OnError receives a message exactly once when the stream fails
	// before any text arrived.
	OnError func(message string)
}

// Result is the outcome of a successful Stream call.
type Result struct {
	Text   string
	ChatID string

	// Cancelled is set when the stream was stopped before completion.
	Cancelled bool

	// Partial holds the failure that was downgraded because text had
	// already arrived. Nil for clean completions and cancellations.
	Partial error
}

// Streamer runs streaming requests.
type Streamer struct {
	opener     Opener
	governor   Governor
	supervisor *Supervisor
	log        logrus.FieldLogger

	progressThreshold int
	progressInterval  int
}

// NewStreamer creates a Streamer with default supervision values.
func NewStreamer(opener Opener) *Streamer {
	return &Streamer{
		opener:            opener,
		governor:          DefaultGovernor(),
		supervisor:        NewSupervisor(),
		log:               logging.L(),
		progressThreshold: DefaultProgressPromptThreshold,
		progressInterval:  DefaultProgressInterval,
	}
}

// WithGovernor sets the deadline and heartbeat values.
func (s *Streamer) WithGovernor(g Governor) *Streamer {
	s.governor = g
	return s
}

// WithSupervisor shares a Supervisor between Streamers.
func (s *Streamer) WithSupervisor(sv *Supervisor) *Streamer {
	s.supervisor = sv
	return s
}

// WithLogger sets the logger.
func (s *Streamer) WithLogger(l logrus.FieldLogger) *Streamer {
	s.log = logging.Or(l)
	return s
}

// WithProgress configures synthetic progress notices. A threshold below
// zero disables them.
func (s *Streamer) WithProgress(promptThreshold, interval int) *Streamer {
	s.progressThreshold = promptThreshold
	s.progressInterval = interval
	return s
}

// Supervisor returns the Supervisor guarding this Streamer.
func (s *Streamer) Supervisor() *Supervisor {
	return s.supervisor
}

// Stop cancels the active stream, if any.
func (s *Streamer) Stop() bool {
	return s.supervisor.Stop()
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Stream sends req and reads the answer until a terminal state. See the
// package documentation for how failures and cancellation resolve.
func (s *Streamer) Stream(ctx context.Context, req Request, h Handlers) (Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Result{}, ErrEmptyPrompt
	}

	// Budgets are sized on the prompt as given, surrounding whitespace
	// included; only the empty check and the request body use the trimmed form.
	timeout := s.governor.Timeout(req.Prompt, req.ExtendedThinking)
	heartbeat := s.governor.HeartbeatInterval(req.Prompt)
	sess, sctx := s.supervisor.Begin(ctx, timeout, heartbeat)
	defer s.supervisor.retire(sess)

	r := &run{
		sess:   sess,
		h:      h,
		chatID: req.ChatID,
		log: s.log.WithFields(logrus.Fields{
			"stream_id": sess.ID,
			"chat_id":   req.ChatID,
			"agent_id":  req.AgentID,
		}),
		progressInterval: s.progressInterval,
		longPrompt:       s.progressThreshold >= 0 && textLength(req.Prompt) > s.progressThreshold,
	}
	r.log.WithFields(logrus.Fields{"timeout": timeout, "heartbeat": heartbeat}).Debug("opening stream")

	body, err := s.opener.OpenStream(sctx, api.ChatRequest{
		Message:          prompt,
		Messages:         model.FlattenHistory(req.History, prompt),
		AgentID:          req.AgentID,
		ChatID:           req.ChatID,
		ExtendedThinking: req.ExtendedThinking,
	})
	if err != nil {
		if sctx.Err() != nil {
			err = cancelled(sctx)
		}
		return r.finish(err)
	}
	defer body.Close()

	return r.finish(r.read(sctx, body))
}

// run is the per-call state of the read loop.
type run struct {
	sess   *Session
	h      Handlers
	log    logrus.FieldLogger
	chatID string

	longPrompt       bool
	progressInterval int
	progressMarks    int
	answerLen        int
}

// errDone is the internal signal for a completed stream.
var errDone = errors.New("done")

// read races body chunks against the deadline, the heartbeat watchdog and
// cancellation. It returns errDone on completion.
func (r *run) read(ctx context.Context, body io.Reader) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		buf := make([]byte, readSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				data := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- data:
				case <-quit:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	deadline := time.NewTimer(r.sess.Timeout)
	defer deadline.Stop()
	watchdog := time.NewTicker(watchdogPeriod(r.sess.Heartbeat))
	defer watchdog.Stop()

	var dec LineDecoder
	for {
		select {
		case <-ctx.Done():
			return cancelled(ctx)

		case data := <-chunks:
			r.sess.Touch()
			deadline.Reset(r.sess.Timeout)
			for _, line := range dec.Decode(data) {
				if err := r.handleLine(line); err != nil {
					return err
				}
			}

		case err := <-readErr:
			if ctx.Err() != nil {
				return cancelled(ctx)
			}
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("read stream: %w", err)
			}
			for _, line := range dec.Flush() {
				if err := r.handleLine(line); err != nil {
					return err
				}
			}
			return ErrStreamClosed

		case <-deadline.C:
			return &TimeoutError{Kind: ErrDeadlineExceeded, After: r.sess.Timeout}

		case <-watchdog.C:
			if idle := r.sess.Idle(); idle > r.sess.Heartbeat {
				return &TimeoutError{Kind: ErrStalledConnection, After: idle}
			}
		}
	}
}

// watchdogPeriod checks twice per heartbeat so a stall is caught within
// 1.5 intervals.
func watchdogPeriod(heartbeat time.Duration) time.Duration {
	if p := heartbeat / 2; p > time.Millisecond {
		return p
	}
	return time.Millisecond
}

// handleLine dispatches one decoded line. It returns errDone on the
// terminal record and a *FatalStreamError for an error before content.
func (r *run) handleLine(line string) error {
	c, ok, err := ParseLine(line)
	if err != nil {
		r.log.WithError(err).Warn("dropping malformed stream record")
		return nil
	}
	if !ok {
		return nil
	}

	if c.ChatID != "" {
		r.chatID = c.ChatID
	}

	switch {
	case c.Type == TypeChunk:
		if c.Content == "" {
			return nil
		}
		r.sess.append(c.Content)
		r.answerLen += textLength(c.Content)
		r.emit(c)
		r.progress(r.answerLen)

	case c.Type == TypeDone:
		return errDone

	case c.Type == TypeError:
		if r.sess.Len() > 0 {
			r.log.WithField("error", c.ErrorMessage()).Warn("error record after content, continuing")
			return nil
		}
		return &FatalStreamError{Message: c.ErrorMessage()}

	case c.Type.IsStatus():
		r.emit(c)

	default:
		r.log.WithField("type", c.Type).Debug("ignoring unknown record type")
	}
	return nil
}

func (r *run) emit(c Chunk) {
	if r.h.OnChunk != nil {
		r.h.OnChunk(c)
	}
}

// progress emits one synthetic notice each time the answer crosses another
// multiple of the progress interval on long prompts.
func (r *run) progress(size int) {
	if !r.longPrompt || r.progressInterval <= 0 {
		return
	}
	marks := size / r.progressInterval
	if marks <= r.progressMarks {
		return
	}
	r.progressMarks = marks
	r.emit(Chunk{
		Type:      TypeChunk,
		Content:   fmt.Sprintf("[still generating: %d characters after %v]", size, r.sess.Elapsed().Round(time.Second)),
		Synthetic: true,
	})
}

// finish maps the loop outcome to a Result and fires the terminal hook.
func (r *run) finish(err error) (Result, error) {
	text := r.sess.Text()
	res := Result{Text: text, ChatID: r.chatID}

	switch {
	case err == nil || errors.Is(err, errDone):
		r.log.WithField("bytes", len(text)).Debug("stream complete")

	case errors.Is(err, ErrUserCancelled):
		res.Cancelled = true
		r.log.WithField("bytes", len(text)).Info("stream cancelled")

	case text != "":
		res.Partial = err
		r.log.WithError(err).WithField("bytes", len(text)).Warn("stream failed after content, keeping partial answer")

	default:
		r.log.WithError(err).Warn("stream failed")
		if r.h.OnError != nil {
			r.h.OnError(Describe(err))
		}
		return Result{}, err
	}

	if r.h.OnComplete != nil {
		r.h.OnComplete(text, r.chatID)
	}
	return res, nil
}

// cancelled converts a done context into an ErrUserCancelled chain that
// keeps the original cause.
func cancelled(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrUserCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrUserCancelled, cause)
}

// Describe renders err for display to the user.
func Describe(err error) string {
	var te *api.TransportError
	var fe *FatalStreamError
	var to *TimeoutError
	switch {
	case errors.As(err, &te):
		if api.IsUnauthorized(err) {
			return "not signed in or session expired (HTTP " + fmt.Sprint(te.Status) + ")"
		}
		if msg := te.Message(); msg != "" {
			return msg
		}
		return te.Error()
	case errors.As(err, &fe):
		return fe.Message
	case errors.As(err, &to):
		return to.Error()
	default:
		return err.Error()
	}
}
