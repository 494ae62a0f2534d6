// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a fresh temp dir and clears
// every override the tests care about.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CHATCORE_HOME", dir)
	for _, k := range []string{
		"CHATCORE_API_URL", "CHATCORE_AGENT", "CHATCORE_TOKEN", "CHATCORE_TOKEN_DB",
		"CHATCORE_LOG_LEVEL", "CHATCORE_LOG_FORMAT", "CHATCORE_STREAM_HEARTBEAT",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 90*time.Second, cfg.Stream.BaseTimeout())
	assert.Equal(t, 600*time.Second, cfg.Stream.MaxTimeout())
	assert.Equal(t, 20*time.Second, cfg.Stream.Heartbeat())
	assert.Equal(t, 45*time.Second, cfg.Stream.ImageHeartbeat())
	assert.Equal(t, 5*time.Minute, cfg.Cache.Freshness())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	data := `
[api]
base_url = "http://localhost:8080/api/"
default_agent = "coder"

[stream]
heartbeat_secs = 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "coder", cfg.API.DefaultAgent)
	assert.Equal(t, 5, cfg.Stream.HeartbeatSecs)
	assert.Equal(t, 90, cfg.Stream.BaseTimeoutSecs, "unset keys keep defaults")
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"api":{"base_url":"https://example.test"}}`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.API.BaseURL)
}

func TestLoad_BrokenFileReturnsDefaultsAndError(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[api\n"), 0o600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CHATCORE_API_URL", "http://127.0.0.1:9000")
	t.Setenv("CHATCORE_AGENT", "writer")
	t.Setenv("CHATCORE_TOKEN", "  secret  ")
	t.Setenv("CHATCORE_LOG_LEVEL", "debug")
	t.Setenv("CHATCORE_STREAM_HEARTBEAT", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.API.BaseURL)
	assert.Equal(t, "writer", cfg.API.DefaultAgent)
	assert.Equal(t, "secret", cfg.Auth.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Stream.HeartbeatSecs)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "ftp://example.test"
	cfg.API.Burst = 0
	cfg.Stream.MaxTimeoutSecs = 10
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"api.base_url", "api.burst", "stream.max_timeout_secs", "log.format"}, fields)
}

func TestSaveTOML_RoundTripOmitsToken(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.API.DefaultAgent = "saved-agent"
	cfg.Auth.Token = "must-not-persist"

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "must-not-persist")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-agent", loaded.API.DefaultAgent)
	assert.Empty(t, loaded.Auth.Token)
}

func TestString_RedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "top-secret"
	assert.NotContains(t, cfg.String(), "top-secret")
}

func TestTokenDBPath(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	p, err := cfg.TokenDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "auth.db"), p)

	abs := filepath.Join(t.TempDir(), "elsewhere.db")
	cfg.Auth.TokenDB = abs
	p, err = cfg.TokenDBPath()
	require.NoError(t, err)
	assert.Equal(t, abs, p)
}

// =============================================================================
// KEYS
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("stream.heartbeat_secs")
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	require.NoError(t, cfg.Set("stream.heartbeat_secs", "30"))
	require.NoError(t, cfg.Set("api.requests_per_second", "2.5"))
	require.NoError(t, cfg.Set("api.base_url", "http://x.test"))
	assert.Equal(t, 30, cfg.Stream.HeartbeatSecs)
	assert.InDelta(t, 2.5, cfg.API.RequestsPerSecond, 0.001)
	assert.Equal(t, "http://x.test", cfg.API.BaseURL)

	assert.Error(t, cfg.Set("stream.heartbeat_secs", "soon"))
	_, err = cfg.Get("api")
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, err = cfg.Get("auth.token")
	assert.ErrorIs(t, err, ErrUnknownKey, "env-only token is not addressable")
	_, err = cfg.Get("nope.value")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "api.base_url")
	assert.Contains(t, keys, "cache.freshness_secs")
	assert.Contains(t, keys, "version")
	assert.NotContains(t, keys, "auth.token")
	assert.IsNonDecreasing(t, keys)
}

// =============================================================================
// GLOBAL
// =============================================================================

// TestConfig_ConcurrentAccess checks Global and SetGlobal under -race.
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestSetGlobalBeforeFirstUseWins(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Default()
	cfg.API.DefaultAgent = "pinned"
	SetGlobal(cfg)

	assert.Equal(t, "pinned", Global().API.DefaultAgent)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			got <- cfg
		}
	}))

	updated := Default()
	updated.API.DefaultAgent = "reloaded"
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-got:
		assert.Equal(t, "reloaded", cfg.API.DefaultAgent)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
