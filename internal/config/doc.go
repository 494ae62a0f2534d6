// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatcore.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: service endpoint, request timeout and client-side rate limit
//   - StreamConfig: deadline and heartbeat tuning for streamed answers
//   - CacheConfig: freshness window for cached chats and usage
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CHATCORE_*)
//   - ~/.chatcore/config.toml
//   - ~/.chatcore/config.json
//   - Built-in defaults
//
// The directory can be moved with CHATCORE_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.Stream.BaseTimeout()
package config
