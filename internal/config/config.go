// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/chatcore/internal/util"
)

// CurrentVersion is written into new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatcore configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	API    APIConfig    `toml:"api" json:"api"`
	Stream StreamConfig `toml:"stream" json:"stream"`
	Cache  CacheConfig  `toml:"cache" json:"cache"`
	Auth   AuthConfig   `toml:"auth" json:"auth"`
	Log    LogConfig    `toml:"log" json:"log"`
}

// APIConfig configures the HTTP client for the chat service.
type APIConfig struct {
	// BaseURL is the service root; endpoint paths are appended to it.
	BaseURL string `toml:"base_url" json:"base_url"`

	// RequestTimeoutSecs bounds non-streaming calls. Streams are governed
	// by the [stream] section instead.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`

	// RequestsPerSecond and Burst shape the client-side rate limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`

	// DefaultAgent is used when no --agent flag is given.
	DefaultAgent string `toml:"default_agent" json:"default_agent"`
}

// RequestTimeout returns the bound on non-streaming calls.
func (a APIConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSecs) * time.Second
}

// StreamConfig tunes the deadline and heartbeat supervision of streams.
type StreamConfig struct {
	BaseTimeoutSecs    int `toml:"base_timeout_secs" json:"base_timeout_secs"`
	MaxTimeoutSecs     int `toml:"max_timeout_secs" json:"max_timeout_secs"`
	HeartbeatSecs      int `toml:"heartbeat_secs" json:"heartbeat_secs"`
	ImageHeartbeatSecs int `toml:"image_heartbeat_secs" json:"image_heartbeat_secs"`

	// Long prompts get synthetic progress notices every ProgressInterval
	// bytes of answer once the prompt exceeds ProgressPromptThreshold runes.
	ProgressPromptThreshold int `toml:"progress_prompt_threshold" json:"progress_prompt_threshold"`
	ProgressInterval        int `toml:"progress_interval" json:"progress_interval"`
}

// BaseTimeout returns the per-chunk deadline before multipliers.
func (s StreamConfig) BaseTimeout() time.Duration {
	return time.Duration(s.BaseTimeoutSecs) * time.Second
}

// MaxTimeout returns the deadline cap.
func (s StreamConfig) MaxTimeout() time.Duration {
	return time.Duration(s.MaxTimeoutSecs) * time.Second
}

// Heartbeat returns the stall threshold for ordinary prompts.
func (s StreamConfig) Heartbeat() time.Duration {
	return time.Duration(s.HeartbeatSecs) * time.Second
}

// ImageHeartbeat returns the stall threshold for image generation prompts.
func (s StreamConfig) ImageHeartbeat() time.Duration {
	return time.Duration(s.ImageHeartbeatSecs) * time.Second
}

// CacheConfig configures the in-memory session cache.
type CacheConfig struct {
	FreshnessSecs int    `toml:"freshness_secs" json:"freshness_secs"`
	ListLimit     int    `toml:"list_limit" json:"list_limit"`
	DefaultModel  string `toml:"default_model" json:"default_model"`
}

// Freshness returns how long cached entries are served without a refetch.
func (c CacheConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessSecs) * time.Second
}

// AuthConfig locates the bearer token.
type AuthConfig struct {
	// TokenDB is the SQLite key-value store holding the token. Relative
	// paths resolve against the config directory.
	TokenDB string `toml:"token_db" json:"token_db"`

	// Token is only ever set from CHATCORE_TOKEN and is never written out.
	Token string `toml:"-" json:"-"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:            "https://api.chatcore.app/v1",
			RequestTimeoutSecs: 30,
			RequestsPerSecond:  5,
			Burst:              10,
			DefaultAgent:       "default",
		},
		Stream: StreamConfig{
			BaseTimeoutSecs:         90,
			MaxTimeoutSecs:          600,
			HeartbeatSecs:           20,
			ImageHeartbeatSecs:      45,
			ProgressPromptThreshold: 2000,
			ProgressInterval:        1500,
		},
		Cache: CacheConfig{
			FreshnessSecs: 300,
			ListLimit:     50,
			DefaultModel:  "default",
		},
		Auth: AuthConfig{
			TokenDB: "auth.db",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatcore configuration directory.
// CHATCORE_HOME overrides the default of ~/.chatcore.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CHATCORE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatcore"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir creates the config directory if it does not exist.
// SECURITY: 0700, the directory also holds the token database.
func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// TokenDBPath resolves Auth.TokenDB against the config directory.
func (c *Config) TokenDBPath() (string, error) {
	if filepath.IsAbs(c.Auth.TokenDB) {
		return c.Auth.TokenDB, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Auth.TokenDB), nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory.
// Tries TOML first, then JSON, and falls back to defaults. Environment
// overrides are applied last. A file that exists but fails to parse is
// reported alongside the defaults so the caller can warn and continue.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			if loadErr == nil {
				loadErr = err
			}
			continue
		}
		return cfg, nil
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(err) {
		// Not fatal: some filesystems cannot chmod.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish runs the post-decode pipeline shared by every load path.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.Migrate()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path.
// RELIABILITY: written atomically so a crash never leaves a half file.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# chatcore configuration file\n")
	buf.WriteString("# Environment variables (CHATCORE_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	u, err := url.Parse(c.API.BaseURL)
	switch {
	case err != nil:
		add("api.base_url", "invalid URL: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	case u.Host == "":
		add("api.base_url", "missing host")
	}
	if c.API.RequestTimeoutSecs <= 0 {
		add("api.request_timeout_secs", "must be positive")
	}
	if c.API.RequestsPerSecond <= 0 {
		add("api.requests_per_second", "must be positive")
	}
	if c.API.Burst < 1 {
		add("api.burst", "must be at least 1")
	}

	if c.Stream.BaseTimeoutSecs <= 0 {
		add("stream.base_timeout_secs", "must be positive")
	}
	if c.Stream.MaxTimeoutSecs < c.Stream.BaseTimeoutSecs {
		add("stream.max_timeout_secs", "must be >= base_timeout_secs (%d)", c.Stream.BaseTimeoutSecs)
	}
	if c.Stream.HeartbeatSecs <= 0 {
		add("stream.heartbeat_secs", "must be positive")
	}
	if c.Stream.ImageHeartbeatSecs <= 0 {
		add("stream.image_heartbeat_secs", "must be positive")
	}
	if c.Stream.ProgressInterval <= 0 {
		add("stream.progress_interval", "must be positive")
	}

	if c.Cache.FreshnessSecs < 0 {
		add("cache.freshness_secs", "must not be negative")
	}
	if c.Cache.ListLimit < 1 || c.Cache.ListLimit > 500 {
		add("cache.list_limit", "must be between 1 and 500")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "invalid level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format %q, must be text or json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults. Explicitly configured
// values are left alone so Validate can reject bad ones.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.RequestTimeoutSecs == 0 {
		c.API.RequestTimeoutSecs = d.API.RequestTimeoutSecs
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = d.API.RequestsPerSecond
	}
	if c.API.Burst == 0 {
		c.API.Burst = d.API.Burst
	}
	if c.API.DefaultAgent == "" {
		c.API.DefaultAgent = d.API.DefaultAgent
	}

	if c.Stream.BaseTimeoutSecs == 0 {
		c.Stream.BaseTimeoutSecs = d.Stream.BaseTimeoutSecs
	}
	if c.Stream.MaxTimeoutSecs == 0 {
		c.Stream.MaxTimeoutSecs = d.Stream.MaxTimeoutSecs
	}
	if c.Stream.HeartbeatSecs == 0 {
		c.Stream.HeartbeatSecs = d.Stream.HeartbeatSecs
	}
	if c.Stream.ImageHeartbeatSecs == 0 {
		c.Stream.ImageHeartbeatSecs = d.Stream.ImageHeartbeatSecs
	}
	if c.Stream.ProgressPromptThreshold == 0 {
		c.Stream.ProgressPromptThreshold = d.Stream.ProgressPromptThreshold
	}
	if c.Stream.ProgressInterval == 0 {
		c.Stream.ProgressInterval = d.Stream.ProgressInterval
	}

	if c.Cache.ListLimit == 0 {
		c.Cache.ListLimit = d.Cache.ListLimit
	}
	if c.Cache.DefaultModel == "" {
		c.Cache.DefaultModel = d.Cache.DefaultModel
	}

	if c.Auth.TokenDB == "" {
		c.Auth.TokenDB = d.Auth.TokenDB
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Migrate normalizes values written by older versions.
func (c *Config) Migrate() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.Version != CurrentVersion {
		c.Version = CurrentVersion
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATCORE_API_URL: overrides api.base_url
//   - CHATCORE_AGENT: overrides api.default_agent
//   - CHATCORE_TOKEN: bearer token, bypasses the token database
//   - CHATCORE_TOKEN_DB: overrides auth.token_db
//   - CHATCORE_LOG_LEVEL: overrides log.level
//   - CHATCORE_LOG_FORMAT: overrides log.format
//   - CHATCORE_STREAM_HEARTBEAT: overrides stream.heartbeat_secs
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATCORE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CHATCORE_AGENT"); v != "" {
		c.API.DefaultAgent = v
	}
	if v := os.Getenv("CHATCORE_TOKEN"); v != "" {
		c.Auth.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("CHATCORE_TOKEN_DB"); v != "" {
		c.Auth.TokenDB = v
	}
	if v := os.Getenv("CHATCORE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHATCORE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("CHATCORE_STREAM_HEARTBEAT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Stream.HeartbeatSecs = secs
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// String renders the configuration as indented JSON for display.
// SECURITY: the env-supplied token is tagged json:"-" and never appears.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process configuration, loading it on first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
