// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/chatcore/internal/api"
	"github.com/jeranaias/chatcore/internal/cache"
	"github.com/jeranaias/chatcore/internal/config"
	"github.com/jeranaias/chatcore/internal/logging"
	"github.com/jeranaias/chatcore/internal/session"
	"github.com/jeranaias/chatcore/internal/stream"
	"github.com/jeranaias/chatcore/internal/tokenstore"
)

// =============================================================================
// APP
// =============================================================================

// App is the wired object graph shared by every command.
type App struct {
	Config   *config.Config
	Log      *logrus.Logger
	Tokens   *tokenstore.Store // nil when the token comes from the environment
	Client   *api.Client
	Cache    *cache.Store
	Streamer *stream.Streamer
	Chat     *session.Controller

	Out io.Writer
	Err io.Writer
	In  io.Reader

	closers []io.Closer
}

// NewApp wires an App from the global configuration.
func NewApp(args Args) (*App, error) {
	return NewAppWithConfig(config.Global(), args)
}

// NewAppWithConfig wires an App from cfg, writing to the process streams.
func NewAppWithConfig(cfg *config.Config, args Args) (*App, error) {
	app := &App{Config: cfg, Out: os.Stdout, Err: os.Stderr, In: os.Stdin}

	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	logOpts := logging.Options{Level: level, Format: cfg.Log.Format}
	if cfg.Log.File != "" {
		l, closer, err := logging.InitFile(logOpts, cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		app.Log = l
		app.closers = append(app.closers, closer)
	} else {
		app.Log = logging.Init(logOpts)
	}

	var tokens api.TokenSource
	if cfg.Auth.Token != "" {
		tokens = tokenstore.Static(cfg.Auth.Token)
	} else if store, err := openTokenStore(cfg); err != nil {
		// RELIABILITY: an unreadable token store degrades to anonymous
		// requests instead of blocking every command.
		app.Log.WithError(err).Warn("token store unavailable, continuing without a token")
	} else {
		app.Tokens = store
		app.closers = append(app.closers, store)
		tokens = store
	}

	app.Client = api.NewClient(cfg.API.BaseURL, tokens).
		WithTimeout(cfg.API.RequestTimeout()).
		WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst).
		WithLogger(app.Log)

	cacheOpts := cache.OptionsFromConfig(cfg.Cache)
	cacheOpts.Logger = app.Log
	app.Cache = cache.New(app.Client, cacheOpts)

	app.Streamer = stream.NewStreamer(app.Client).
		WithGovernor(stream.GovernorFromConfig(cfg.Stream)).
		WithProgress(cfg.Stream.ProgressPromptThreshold, cfg.Stream.ProgressInterval).
		WithLogger(app.Log)

	agent := args.Agent
	if agent == "" {
		agent = cfg.API.DefaultAgent
	}
	app.Chat = session.NewController(app.Cache, app.Streamer).
		WithDefaultAgent(agent).
		WithLogger(app.Log)

	return app, nil
}

func openTokenStore(cfg *config.Config) (*tokenstore.Store, error) {
	path, err := cfg.TokenDBPath()
	if err != nil {
		return nil, err
	}
	return tokenstore.Open(path)
}

// Close releases the token store and log file.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// status writes a status line to stderr unless quiet.
func (a *App) status(args Args, format string, v ...any) {
	if args.Quiet {
		return
	}
	fmt.Fprintf(a.Err, format+"\n", v...)
}
