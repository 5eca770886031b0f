// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable [Load] reads.
const EnvConfigPath = "AGENTCHAT_CONFIG"

// ErrNoConfig is returned by Load when AGENTCHAT_CONFIG is unset.
var ErrNoConfig = errors.New("config: " + EnvConfigPath + " is not set")

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Notification backends.
const (
	NotifyNone   = "none"
	NotifyMemory = "memory"
	NotifyRedis  = "redis"
)

// Config is the complete agentchat configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	Server     ServerConfig     `yaml:"server"`
	Stream     StreamConfig     `yaml:"stream"`
	Typewriter TypewriterConfig `yaml:"typewriter"`
	Notify     NotifyConfig     `yaml:"notify"`
	Log        LogConfig        `yaml:"log"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the sections an environment may override.
// Non-empty strings and non-zero numbers replace base values; booleans
// in a present section always apply.
type ConfigOverrides struct {
	Server     *ServerConfig     `yaml:"server,omitempty"`
	Stream     *StreamConfig     `yaml:"stream,omitempty"`
	Typewriter *TypewriterConfig `yaml:"typewriter,omitempty"`
	Notify     *NotifyConfig     `yaml:"notify,omitempty"`
	Log        *LogConfig        `yaml:"log,omitempty"`
}

// ServerConfig locates the agent backend.
type ServerConfig struct {
	// BaseURL is the backend root. Stream, session, and upload paths
	// are appended to it.
	BaseURL string `yaml:"base_url"`

	// Token is sent as a bearer credential when non-empty.
	Token string `yaml:"token"`

	// RequestTimeout bounds session and upload calls. Streams are
	// bounded by Stream.IdleTimeout instead.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StreamConfig tunes the event-stream reader.
type StreamConfig struct {
	// IdleTimeout aborts a stream that receives nothing for this long.
	// Zero disables the watchdog.
	// Default: 2m
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxLineBytes bounds a single event-stream line.
	// Default: 1048576
	MaxLineBytes int `yaml:"max_line_bytes"`

	// FlushTrailing delivers a final event the server did not
	// terminate with a blank line.
	FlushTrailing bool `yaml:"flush_trailing"`

	// Compression requests zstd or gzip response bodies.
	Compression bool `yaml:"compression"`
}

// TypewriterConfig paces the reveal of assistant text.
type TypewriterConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is the time between reveal steps.
	// Default: 20ms
	Interval time.Duration `yaml:"interval"`

	// Step is the number of characters revealed per interval.
	// Default: 2
	Step int `yaml:"step"`
}

// NotifyConfig selects where sessions-changed notifications go.
type NotifyConfig struct {
	// Backend is "none", "memory", or "redis".
	// Default: memory
	Backend string `yaml:"backend"`

	// RedisURL is required for the redis backend.
	RedisURL string `yaml:"redis_url"`

	// Channel is the redis pub/sub channel.
	// Default: agentchat:sessions
	Channel string `yaml:"channel"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text, or json.
	// Default: auto
	Format string `yaml:"format"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			IdleTimeout:  2 * time.Minute,
			MaxLineBytes: 1024 * 1024,
		},
		Typewriter: TypewriterConfig{
			Enabled:  true,
			Interval: 20 * time.Millisecond,
			Step:     2,
		},
		Notify: NotifyConfig{
			Backend: NotifyMemory,
			Channel: "agentchat:sessions",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by AGENTCHAT_CONFIG.
// Returns ErrNoConfig when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfigPath)
	if configPath == "" {
		return nil, ErrNoConfig
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the matching
// environment section, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges one file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section for c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.BaseURL != "" {
			c.Server.BaseURL = overrides.Server.BaseURL
		}
		if overrides.Server.Token != "" {
			c.Server.Token = overrides.Server.Token
		}
		if overrides.Server.RequestTimeout != 0 {
			c.Server.RequestTimeout = overrides.Server.RequestTimeout
		}
	}

	if overrides.Stream != nil {
		if overrides.Stream.IdleTimeout != 0 {
			c.Stream.IdleTimeout = overrides.Stream.IdleTimeout
		}
		if overrides.Stream.MaxLineBytes != 0 {
			c.Stream.MaxLineBytes = overrides.Stream.MaxLineBytes
		}
		c.Stream.FlushTrailing = overrides.Stream.FlushTrailing
		c.Stream.Compression = overrides.Stream.Compression
	}

	if overrides.Typewriter != nil {
		c.Typewriter.Enabled = overrides.Typewriter.Enabled
		if overrides.Typewriter.Interval != 0 {
			c.Typewriter.Interval = overrides.Typewriter.Interval
		}
		if overrides.Typewriter.Step != 0 {
			c.Typewriter.Step = overrides.Typewriter.Step
		}
	}

	if overrides.Notify != nil {
		if overrides.Notify.Backend != "" {
			c.Notify.Backend = overrides.Notify.Backend
		}
		if overrides.Notify.RedisURL != "" {
			c.Notify.RedisURL = overrides.Notify.RedisURL
		}
		if overrides.Notify.Channel != "" {
			c.Notify.Channel = overrides.Notify.Channel
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in endpoint and
// credential fields.
func (c *Config) expandVariables() {
	c.Server.BaseURL = expandVars(c.Server.BaseURL)
	c.Server.Token = expandVars(c.Server.Token)
	c.Notify.RedisURL = expandVars(c.Notify.RedisURL)
	c.Notify.Channel = expandVars(c.Notify.Channel)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.BaseURL == "" {
		errs = append(errs, fmt.Errorf("server.base_url is required"))
	} else if parsed, err := url.Parse(c.Server.BaseURL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("server.base_url must be an http or https URL, got %q", c.Server.BaseURL))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must not be negative"))
	}

	if c.Stream.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("stream.idle_timeout must not be negative"))
	}
	if c.Stream.MaxLineBytes < 0 {
		errs = append(errs, fmt.Errorf("stream.max_line_bytes must not be negative"))
	}

	if c.Typewriter.Enabled {
		if c.Typewriter.Interval <= 0 {
			errs = append(errs, fmt.Errorf("typewriter.interval must be positive when the typewriter is enabled"))
		}
		if c.Typewriter.Step <= 0 {
			errs = append(errs, fmt.Errorf("typewriter.step must be positive when the typewriter is enabled"))
		}
	}

	backends := []string{NotifyNone, NotifyMemory, NotifyRedis}
	if !contains(backends, c.Notify.Backend) {
		errs = append(errs, fmt.Errorf("notify.backend must be one of: %v", backends))
	}
	if c.Notify.Backend == NotifyRedis && c.Notify.RedisURL == "" {
		errs = append(errs, fmt.Errorf("notify.redis_url is required for the redis backend"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"auto", "text", "json"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel converts Level to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", l.Level)
	}
	return level, nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
