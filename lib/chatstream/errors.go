// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	// ErrStreamClosed means the server closed the connection before
	// sending an end or error event.
	ErrStreamClosed = errors.New("chatstream: stream closed before a terminal event")

	// ErrIdleTimeout means no bytes arrived within the idle window.
	ErrIdleTimeout = errors.New("chatstream: stream idle timeout")
)

// HTTPError is returned by Open when the server answers with a non-2xx
// status.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the server's error text: the "detail", "error", or
	// "message" field of a JSON body, or the raw body excerpt.
	Message string
}

func (err *HTTPError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("chatstream: HTTP %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}
	return fmt.Sprintf("chatstream: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsUnauthorized reports a 401 or 403 answer.
func (err *HTTPError) IsUnauthorized() bool {
	return err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden
}

// ReadHTTPError builds an HTTPError from a failed response. The body is
// read up to 4 KiB; the caller closes it. Shared with the backend's
// REST clients, which see the same error bodies.
func ReadHTTPError(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	return &HTTPError{
		StatusCode: response.StatusCode,
		Message:    errorMessageFromBody(body),
	}
}

// errorMessageFromBody pulls a message out of the JSON error shapes the
// backend and its proxies use, falling back to the trimmed body.
func errorMessageFromBody(body []byte) string {
	var wire struct {
		Detail  any    `json:"detail"`
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if sonic.Unmarshal(body, &wire) == nil {
		for _, candidate := range []any{wire.Detail, wire.Error, wire.Message} {
			if text := describe(candidate); text != "" {
				return text
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func describe(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case map[string]any:
		if message, ok := value["message"].(string); ok {
			return message
		}
	}
	encoded, err := sonic.MarshalString(value)
	if err != nil {
		return ""
	}
	return encoded
}
