// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstream

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bureau-foundation/agentchat/lib/clock"
	"github.com/bureau-foundation/agentchat/lib/sse"
	"github.com/bureau-foundation/agentchat/lib/version"
)

// DefaultIdleTimeout is applied when Options.IdleTimeout is zero and
// DisableIdleTimeout is false.
const DefaultIdleTimeout = 2 * time.Minute

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root, e.g. "https://chat.example.com/api".
	// A missing scheme defaults to https.
	BaseURL string

	// Token, when set, is sent as a bearer credential.
	Token string

	// HTTPClient performs requests. Defaults to a client without an
	// overall timeout: streams are long-lived and bounded by the idle
	// timeout and the caller's context instead.
	HTTPClient *http.Client

	// IdleTimeout aborts a stream that receives no bytes for this
	// long. Zero selects DefaultIdleTimeout.
	IdleTimeout time.Duration

	// DisableIdleTimeout turns the idle watchdog off entirely.
	DisableIdleTimeout bool

	// MaxLineBytes bounds one SSE line. Zero selects the scanner
	// default.
	MaxLineBytes int

	// FlushTrailing emits a final frame that the server did not
	// terminate with a blank line.
	FlushTrailing bool

	// Compression asks the server for zstd or gzip bodies.
	Compression bool

	// Clock drives the idle watchdog. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives stream lifecycle records. Nil discards.
	Logger *slog.Logger
}

// Request is the body of one streamed message.
type Request struct {
	Content   string   `json:"content"`
	SessionID string   `json:"session_id,omitempty"`
	FileIDs   []string `json:"file_ids,omitempty"`
}

// Client opens streams against one backend. Safe for concurrent use;
// each Open is independent.
type Client struct {
	endpoint    string
	token       string
	httpClient  *http.Client
	idleTimeout time.Duration
	compression bool
	scanOptions []sse.Option
	clock       clock.Clock
	logger      *slog.Logger
}

// NewClient validates options and returns a Client.
func NewClient(options Options) (*Client, error) {
	base, err := NormalizeBaseURL(options.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	idleTimeout := options.IdleTimeout
	if idleTimeout < 0 {
		return nil, fmt.Errorf("chatstream: idle timeout must not be negative, got %s", idleTimeout)
	}
	if idleTimeout == 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if options.DisableIdleTimeout {
		idleTimeout = 0
	}
	streamClock := options.Clock
	if streamClock == nil {
		streamClock = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	scanOptions := []sse.Option{sse.WithFlushTrailing(options.FlushTrailing)}
	if options.MaxLineBytes > 0 {
		scanOptions = append(scanOptions, sse.WithMaxLineBytes(options.MaxLineBytes))
	}

	return &Client{
		endpoint:    base + endpointMessageStream,
		token:       options.Token,
		httpClient:  httpClient,
		idleTimeout: idleTimeout,
		compression: options.Compression,
		scanOptions: scanOptions,
		clock:       streamClock,
		logger:      logger,
	}, nil
}

// NormalizeBaseURL adds a default https scheme, drops a trailing slash,
// and rejects URLs without a host. Path prefixes are kept so the
// backend can live under a reverse-proxy mount.
func NormalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("chatstream: base URL is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("chatstream: parsing base URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("chatstream: base URL %q: unsupported scheme %q", raw, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("chatstream: base URL %q has no host", raw)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}

// Open sends request and returns the live stream once the server has
// answered with a 2xx status. The stream is bound to ctx: cancelling
// ctx has the same effect as [Stream.Cancel].
//
// Errors before the stream starts (marshal, transport, non-2xx status,
// unsupported encoding) are returned here; in that case no Stream
// exists and nothing needs closing.
func (client *Client) Open(ctx context.Context, request Request) (*Stream, error) {
	body, err := sonic.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("chatstream: marshaling request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	httpRequest, err := http.NewRequestWithContext(streamCtx, http.MethodPost, client.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chatstream: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "text/event-stream")
	httpRequest.Header.Set("Cache-Control", "no-cache")
	httpRequest.Header.Set("User-Agent", version.UserAgent())
	if client.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+client.token)
	}
	if client.compression {
		httpRequest.Header.Set("Accept-Encoding", acceptEncoding)
	}

	logger := client.logger.With("endpoint", client.endpoint, "session_id", request.SessionID)
	logger.Debug("opening stream", "content_length", len(request.Content), "files", len(request.FileIDs))

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chatstream: sending request: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		defer cancel()
		httpErr := ReadHTTPError(response)
		logger.Warn("stream rejected", "status", response.StatusCode, "error", httpErr)
		return nil, httpErr
	}

	decoded, err := decodeBody(response)
	if err != nil {
		response.Body.Close()
		cancel()
		return nil, err
	}

	stream := newStream(streamCtx, cancel, decoded, client.idleTimeout, client.clock, logger)
	logger.Info("stream opened", "status", response.StatusCode,
		"content_encoding", response.Header.Get("Content-Encoding"))
	go stream.run(client.scanOptions)
	return stream, nil
}
