// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// UsageLimits is the caller's quota as reported by GET /usage.
type UsageLimits struct {
	Tier          string     `json:"tier"`
	MessagesUsed  int        `json:"messages_used"`
	MessagesLimit int        `json:"messages_limit"`
	ResetAt       *time.Time `json:"reset_at,omitempty"`
	IsGuest       bool       `json:"is_guest"`
}

// Remaining returns how many messages are left, or -1 for unlimited plans.
func (u UsageLimits) Remaining() int {
	if u.MessagesLimit <= 0 {
		return -1
	}
	if left := u.MessagesLimit - u.MessagesUsed; left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether a limited plan has no messages left.
func (u UsageLimits) Exhausted() bool {
	return u.Remaining() == 0
}

// Agent is an assistant persona offered by the service.
type Agent struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Description              string `json:"description,omitempty"`
	Model                    string `json:"model,omitempty"`
	SupportsExtendedThinking bool   `json:"supports_extended_thinking,omitempty"`
	SupportsWebSearch        bool   `json:"supports_web_search,omitempty"`
}
