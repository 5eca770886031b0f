// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Stream.IdleTimeout != 2*time.Minute {
		t.Errorf("expected idle_timeout=2m, got %s", cfg.Stream.IdleTimeout)
	}
	if !cfg.Typewriter.Enabled || cfg.Typewriter.Interval != 20*time.Millisecond || cfg.Typewriter.Step != 2 {
		t.Errorf("unexpected typewriter defaults: %+v", cfg.Typewriter)
	}
	if cfg.Notify.Backend != NotifyMemory {
		t.Errorf("expected notify backend=memory, got %s", cfg.Notify.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	_, err := Load()
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("expected ErrNoConfig, got %v", err)
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	path := writeConfig(t, "agentchat.yaml", `
environment: staging
server:
  base_url: https://staging.example.com
`)
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Server.BaseURL != "https://staging.example.com" {
		t.Errorf("expected base_url from file, got %s", cfg.Server.BaseURL)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "agentchat.yaml", `
environment: staging

server:
  base_url: https://agents.example.com/api
  request_timeout: 10s

stream:
  idle_timeout: 45s
  max_line_bytes: 65536
  flush_trailing: true
  compression: true

typewriter:
  enabled: false

notify:
  backend: redis
  redis_url: redis://localhost:6379/2

log:
  level: debug
  format: json
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("expected request_timeout=10s, got %s", cfg.Server.RequestTimeout)
	}
	if cfg.Stream.IdleTimeout != 45*time.Second || cfg.Stream.MaxLineBytes != 65536 {
		t.Errorf("unexpected stream config: %+v", cfg.Stream)
	}
	if !cfg.Stream.FlushTrailing || !cfg.Stream.Compression {
		t.Errorf("expected flush_trailing and compression, got %+v", cfg.Stream)
	}
	if cfg.Typewriter.Enabled {
		t.Error("expected typewriter disabled")
	}
	// Unset fields keep their defaults.
	if cfg.Typewriter.Interval != 20*time.Millisecond {
		t.Errorf("expected default interval preserved, got %s", cfg.Typewriter.Interval)
	}
	if cfg.Notify.Channel != "agentchat:sessions" {
		t.Errorf("expected default channel preserved, got %s", cfg.Notify.Channel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "agentchat.jsonc", `{
  // Local backend.
  "server": {
    "base_url": "http://127.0.0.1:9000",
    "token": "abc",
  },
  /* Slow model: wait longer. */
  "stream": {"idle_timeout": "5m"},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:9000" || cfg.Server.Token != "abc" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Stream.IdleTimeout != 5*time.Minute {
		t.Errorf("expected idle_timeout=5m, got %s", cfg.Stream.IdleTimeout)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	path := writeConfig(t, "broken.yaml", "server: [unclosed\n")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("expected parse error naming the file, got %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "agentchat.yaml", `
environment: production

server:
  base_url: http://localhost:8000

typewriter:
  step: 2

production:
  server:
    base_url: https://agents.example.com
  typewriter:
    enabled: true
    step: 8
  log:
    level: warn

development:
  server:
    base_url: http://dev.invalid
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.BaseURL != "https://agents.example.com" {
		t.Errorf("expected production base_url, got %s", cfg.Server.BaseURL)
	}
	if cfg.Typewriter.Step != 8 || !cfg.Typewriter.Enabled {
		t.Errorf("expected production typewriter override, got %+v", cfg.Typewriter)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Log.Level)
	}
	// An explicit production section replaces the implicit one.
	if cfg.Log.Format != "auto" {
		t.Errorf("expected log format auto, got %s", cfg.Log.Format)
	}
}

func TestProductionDefaults(t *testing.T) {
	path := writeConfig(t, "agentchat.yaml", "environment: production\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected production log format json, got %s", cfg.Log.Format)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("AGENTCHAT_TEST_TOKEN", "from-env")
	t.Setenv("AGENTCHAT_TEST_UNSET", "")

	path := writeConfig(t, "agentchat.yaml", `
server:
  base_url: ${AGENTCHAT_TEST_UNSET:-https://fallback.example.com}
  token: ${AGENTCHAT_TEST_TOKEN}
notify:
  channel: chat:${AGENTCHAT_TEST_UNSET}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.Token != "from-env" {
		t.Errorf("expected token from environment, got %q", cfg.Server.Token)
	}
	if cfg.Server.BaseURL != "https://fallback.example.com" {
		t.Errorf("expected default base_url, got %q", cfg.Server.BaseURL)
	}
	if cfg.Notify.Channel != "chat:" {
		t.Errorf("expected empty expansion, got %q", cfg.Notify.Channel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"missing base url", func(c *Config) { c.Server.BaseURL = "" }, "server.base_url is required"},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://host" }, "server.base_url must be"},
		{"negative idle", func(c *Config) { c.Stream.IdleTimeout = -time.Second }, "stream.idle_timeout"},
		{"zero idle disables", func(c *Config) { c.Stream.IdleTimeout = 0 }, ""},
		{"zero step", func(c *Config) { c.Typewriter.Step = 0 }, "typewriter.step"},
		{"zero step disabled", func(c *Config) { c.Typewriter.Step = 0; c.Typewriter.Enabled = false }, ""},
		{"unknown backend", func(c *Config) { c.Notify.Backend = "kafka" }, "notify.backend"},
		{"redis without url", func(c *Config) { c.Notify.Backend = NotifyRedis }, "notify.redis_url"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("expected error containing %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = ""
	cfg.Notify.Backend = "kafka"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"server.base_url", "notify.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	level, err := LogConfig{Level: "debug"}.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel(debug) = %v, %v", level, err)
	}
	if _, err := (LogConfig{Level: "chatty"}).SlogLevel(); err == nil {
		t.Error("expected error for unknown level")
	}
}
