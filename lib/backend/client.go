// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend is the REST side of the agent server: session
// history and file uploads. Streaming messages live in lib/chatstream;
// both share the base URL and bearer token.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"

	"github.com/bureau-foundation/agentchat/lib/chatstream"
	"github.com/bureau-foundation/agentchat/lib/version"
)

// ErrNotFound is returned when the server answers 404 for a session.
var ErrNotFound = errors.New("backend: not found")

const (
	endpointSessions   = "/agent/sessions"
	endpointFileUpload = "/files/upload"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the sessions and files endpoints. Safe for concurrent
// use.
type Client struct {
	base       string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New validates options and returns a Client.
func New(options Options) (*Client, error) {
	base, err := chatstream.NormalizeBaseURL(options.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{base: base, token: options.Token, httpClient: httpClient, logger: logger}, nil
}

// do sends request with auth applied and returns the response for a
// 2xx status. Other statuses become *chatstream.HTTPError, with 404
// additionally matching ErrNotFound.
func (client *Client) do(request *http.Request) (*http.Response, error) {
	if client.token != "" {
		request.Header.Set("Authorization", "Bearer "+client.token)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", request.Method, request.URL.Path, err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return response, nil
	}
	defer response.Body.Close()

	httpErr := chatstream.ReadHTTPError(response)
	client.logger.Debug("backend request failed",
		"method", request.Method, "path", request.URL.Path, "status", response.StatusCode)
	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, request.URL.Path, httpErr)
	}
	return nil, fmt.Errorf("backend: %s %s: %w", request.Method, request.URL.Path, httpErr)
}

// getJSON decodes the body of a GET into target.
func (client *Client) getJSON(ctx context.Context, path string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.base+path, nil)
	if err != nil {
		return fmt.Errorf("backend: creating request: %w", err)
	}
	response, err := client.do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("backend: reading %s: %w", path, err)
	}
	if err := sonic.Unmarshal(body, target); err != nil {
		return fmt.Errorf("backend: decoding %s: %w", path, err)
	}
	return nil
}

func sessionPath(id string) string {
	return endpointSessions + "/" + url.PathEscape(id)
}
