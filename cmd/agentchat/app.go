// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/agentchat/cmd/agentchat/cli"
	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chatstream"
	"github.com/bureau-foundation/agentchat/lib/config"
	"github.com/bureau-foundation/agentchat/lib/notify"
)

// envToken supplies the bearer token when neither the flag nor the
// configuration file sets one.
const envToken = "AGENTCHAT_TOKEN"

// app holds the process streams and the flags every command shares.
type app struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	baseURL    string
	token      string
	verbose    bool
}

func newApp(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{ctx: ctx, stdin: stdin, stdout: stdout, stderr: stderr}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "agentchat",
		Summary: "Chat with a streaming agent backend",
		Description: "Chat with a streaming agent backend.\n\n" +
			"Configuration comes from the file named by --config or $AGENTCHAT_CONFIG.\n" +
			"Without one, agentchat talks to http://localhost:8000.",
		HelpOutput: a.stderr,
		Subcommands: []*cli.Command{
			a.chatCommand(),
			a.sendCommand(),
			a.sessionsCommand(),
			a.uploadCommand(),
			a.versionCommand(),
		},
	}
}

// sharedFlags returns a flag set carrying the connection flags.
func (a *app) sharedFlags(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&a.configPath, "config", "", "configuration file (default $AGENTCHAT_CONFIG)")
	flagSet.StringVar(&a.baseURL, "base-url", "", "agent backend URL, overrides server.base_url")
	flagSet.StringVar(&a.token, "token", "", "bearer token, overrides server.token (default $AGENTCHAT_TOKEN)")
	flagSet.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	return flagSet
}

// loadConfig resolves configuration: flags over the file over defaults.
func (a *app) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.Load()
		if errors.Is(err, config.ErrNoConfig) {
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if a.baseURL != "" {
		cfg.Server.BaseURL = a.baseURL
	}
	if a.token != "" {
		cfg.Server.Token = a.token
	} else if cfg.Server.Token == "" {
		cfg.Server.Token = os.Getenv(envToken)
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// services are the clients a command talks to.
type services struct {
	config  *config.Config
	logger  *slog.Logger
	streams *chatstream.Client
	backend *backend.Client

	// bus is nil when notifications are disabled.
	bus      notify.Bus
	closeBus func()
}

func (s *services) Close() {
	if s.closeBus != nil {
		s.closeBus()
	}
}

// connect loads configuration and builds the clients. logOutput
// overrides where the logger writes; nil means stderr.
func (a *app) connect(command string, logOutput io.Writer) (*services, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	level, _ := cfg.Log.SlogLevel()
	if logOutput == nil {
		logOutput = a.stderr
	}
	logger := cli.NewCommandLogger(cli.LoggerOptions{
		Level:  level,
		Format: cfg.Log.Format,
		Output: logOutput,
	}).With("command", command)

	streams, err := chatstream.NewClient(chatstream.Options{
		BaseURL:            cfg.Server.BaseURL,
		Token:              cfg.Server.Token,
		IdleTimeout:        cfg.Stream.IdleTimeout,
		DisableIdleTimeout: cfg.Stream.IdleTimeout == 0,
		MaxLineBytes:       cfg.Stream.MaxLineBytes,
		FlushTrailing:      cfg.Stream.FlushTrailing,
		Compression:        cfg.Stream.Compression,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	backendClient, err := backend.New(backend.Options{
		BaseURL:    cfg.Server.BaseURL,
		Token:      cfg.Server.Token,
		HTTPClient: &http.Client{Timeout: cfg.Server.RequestTimeout},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	result := &services{config: cfg, logger: logger, streams: streams, backend: backendClient}
	switch cfg.Notify.Backend {
	case config.NotifyMemory:
		result.bus = notify.NewMemory()
	case config.NotifyRedis:
		bus, err := notify.NewRedis(a.ctx, notify.RedisOptions{
			URL:     cfg.Notify.RedisURL,
			Channel: cfg.Notify.Channel,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		result.bus = bus
		result.closeBus = func() { bus.Close() }
	}
	return result, nil
}

// publish announces a session change. Failures are logged; the
// notification is advisory.
func (s *services) publish(kind notify.Kind, sessionID string) {
	if s.bus == nil || sessionID == "" {
		return
	}
	event := notify.Event{Kind: kind, SessionID: sessionID, At: time.Now()}
	if err := s.bus.Publish(context.Background(), event); err != nil {
		s.logger.Warn("publishing session notification failed", "kind", string(kind), "session_id", sessionID, "error", err)
	}
}
