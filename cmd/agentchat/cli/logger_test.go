// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewCommandLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   string
	}{
		// A buffer is never a terminal, so auto means JSON.
		{"auto", "auto", `"msg":"hello"`},
		{"empty", "", `"msg":"hello"`},
		{"json", "json", `"msg":"hello"`},
		{"text", "text", "msg=hello"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buffer bytes.Buffer
			logger := NewCommandLogger(LoggerOptions{Format: test.format, Output: &buffer})
			logger.Info("hello")
			if !strings.Contains(buffer.String(), test.want) {
				t.Errorf("output = %q, want %q", buffer.String(), test.want)
			}
		})
	}
}

func TestNewCommandLoggerLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewCommandLogger(LoggerOptions{Level: slog.LevelWarn, Format: "text", Output: &buffer})
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buffer.String(), "quiet") || !strings.Contains(buffer.String(), "loud") {
		t.Errorf("output = %q", buffer.String())
	}
}

func TestWriteJSONNormalizesNilSlice(t *testing.T) {
	var buffer bytes.Buffer
	var empty []string
	if err := WriteJSON(&buffer, empty); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("output = %q, want []", buffer.String())
	}
}
