// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/text/cases"

	"github.com/jeranaias/chatcore/internal/config"
)

// Default supervision values.
const (
	DefaultBaseTimeout    = 90 * time.Second
	DefaultMaxTimeout     = 600 * time.Second
	DefaultHeartbeat      = 20 * time.Second
	DefaultImageHeartbeat = 45 * time.Second

	// timeoutBlock is the prompt length each base timeout covers.
	timeoutBlock = 1000

	extendedThinkingFactor = 2
	imageFactor            = 3
)

// Governor computes how long a stream may go without data.
type Governor struct {
	BaseTimeout    time.Duration
	MaxTimeout     time.Duration
	Heartbeat      time.Duration
	ImageHeartbeat time.Duration
}

// DefaultGovernor returns the built-in supervision values.
func DefaultGovernor() Governor {
	return Governor{
		BaseTimeout:    DefaultBaseTimeout,
		MaxTimeout:     DefaultMaxTimeout,
		Heartbeat:      DefaultHeartbeat,
		ImageHeartbeat: DefaultImageHeartbeat,
	}
}

// GovernorFromConfig builds a Governor from the [stream] section.
func GovernorFromConfig(cfg config.StreamConfig) Governor {
	return Governor{
		BaseTimeout:    cfg.BaseTimeout(),
		MaxTimeout:     cfg.MaxTimeout(),
		Heartbeat:      cfg.Heartbeat(),
		ImageHeartbeat: cfg.ImageHeartbeat(),
	}
}

// Timeout is min(base x ext x ceil(len/1000) x img, max), where ext is 2
// with extended thinking and img is 3 for image generation prompts.
// Length is counted in UTF-16 code units and an empty prompt counts as
// one block.
func (g Governor) Timeout(prompt string, extendedThinking bool) time.Duration {
	blocks := (textLength(prompt) + timeoutBlock - 1) / timeoutBlock
	if blocks < 1 {
		blocks = 1
	}

	factor := int64(blocks)
	if extendedThinking {
		factor *= extendedThinkingFactor
	}
	if IsImageRequest(prompt) {
		factor *= imageFactor
	}

	// Compare before multiplying so huge prompts cannot overflow.
	if g.BaseTimeout <= 0 || factor > int64(g.MaxTimeout/g.BaseTimeout) {
		return g.MaxTimeout
	}
	if t := g.BaseTimeout * time.Duration(factor); t < g.MaxTimeout {
		return t
	}
	return g.MaxTimeout
}

// HeartbeatInterval is the longest silence tolerated before the stream is
// declared stalled.
func (g Governor) HeartbeatInterval(prompt string) time.Duration {
	if IsImageRequest(prompt) {
		return g.ImageHeartbeat
	}
	return g.Heartbeat
}

// ComputeTimeout applies the default governor.
func ComputeTimeout(prompt string, extendedThinking bool) time.Duration {
	return DefaultGovernor().Timeout(prompt, extendedThinking)
}

// HeartbeatInterval applies the default governor.
func HeartbeatInterval(prompt string) time.Duration {
	return DefaultGovernor().HeartbeatInterval(prompt)
}

// textLength counts UTF-16 code units, the unit prompt and answer sizes use.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// =============================================================================
// INTENT HEURISTICS
// =============================================================================

var (
	imageVerbs = []string{"generate", "create", "draw", "paint", "picture", "visualize", "illustrate"}

	codingWords = []string{
		"code", "function", "debug", "compile", "refactor", "script", "program",
		"stack trace", "regex", "sql", "python", "javascript", "typescript", "golang",
	}

	webSearchWords = []string{
		"search", "look up", "latest", "news", "today", "current", "weather",
		"price of", "stock", "score",
	}
)

// fold is a caseless form for keyword matching.
func fold(s string) string {
	return cases.Fold().String(s)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// IsImageRequest reports whether prompt asks for an image: it mentions
// "image" together with a creation verb.
func IsImageRequest(prompt string) bool {
	p := fold(prompt)
	return strings.Contains(p, "image") && containsAny(p, imageVerbs)
}

// IsCodingRequest reports whether prompt looks like a programming task.
func IsCodingRequest(prompt string) bool {
	return containsAny(fold(prompt), codingWords)
}

// IsWebSearchRequest reports whether prompt likely needs fresh web data.
func IsWebSearchRequest(prompt string) bool {
	return containsAny(fold(prompt), webSearchWords)
}
