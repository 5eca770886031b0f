// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrLineTooLong is returned when a single line grows past the
// configured maximum without a terminating newline.
var ErrLineTooLong = errors.New("sse: line exceeds maximum length")

// Frame is one event block: the name from the "event:" line and the
// concatenated payload of its "data:" lines.
type Frame struct {
	Event string
	Data  string
}

// Option configures a Parser.
type Option func(*Parser)

// WithFlushTrailing controls what happens to an unterminated final line
// when the stream ends. By default it is dropped together with any
// frame that was still waiting for its blank line. When enabled, the
// trailing line is processed and a pending frame with both an event
// name and data is emitted by [Parser.Close].
func WithFlushTrailing(enabled bool) Option {
	return func(parser *Parser) {
		parser.flushTrailing = enabled
	}
}

// WithMaxLineBytes bounds the carry-over buffer. Zero means unbounded.
func WithMaxLineBytes(limit int) Option {
	return func(parser *Parser) {
		parser.maxLineBytes = limit
	}
}

// Parser assembles frames from arbitrarily chunked input. The zero
// value is not usable; call [NewParser].
//
// Parser is not safe for concurrent use.
type Parser struct {
	pending []byte

	event   string
	data    strings.Builder
	hasData bool

	flushTrailing bool
	maxLineBytes  int
	closed        bool
}

// NewParser returns a parser with empty state.
func NewParser(options ...Option) *Parser {
	parser := &Parser{}
	for _, option := range options {
		option(parser)
	}
	return parser
}

// Feed appends chunk to the carry-over buffer and returns every frame
// completed by it, in stream order. Bytes are only interpreted once a
// full line is available, so a multi-byte UTF-8 sequence split across
// two chunks is reassembled before decoding.
//
// Feeding a closed parser returns no frames.
func (parser *Parser) Feed(chunk []byte) ([]Frame, error) {
	if parser.closed {
		return nil, nil
	}
	parser.pending = append(parser.pending, chunk...)

	var frames []Frame
	for {
		index := bytes.IndexByte(parser.pending, '\n')
		if index < 0 {
			break
		}
		line := string(parser.pending[:index])
		parser.pending = parser.pending[index+1:]
		if frame, ok := parser.processLine(line); ok {
			frames = append(frames, frame)
		}
	}

	// Compact so a long-lived stream does not pin the whole history
	// behind a sliced buffer.
	if len(parser.pending) == 0 {
		parser.pending = parser.pending[:0:0]
	} else if cap(parser.pending) > 4*len(parser.pending) && cap(parser.pending) > 4096 {
		parser.pending = append([]byte(nil), parser.pending...)
	}

	if parser.maxLineBytes > 0 && len(parser.pending) > parser.maxLineBytes {
		return frames, fmt.Errorf("%w (%d bytes pending, limit %d)",
			ErrLineTooLong, len(parser.pending), parser.maxLineBytes)
	}
	return frames, nil
}

// Close marks the end of the stream. It returns the final frame only
// when flushing is enabled and the trailing input completes one;
// otherwise the partial state is discarded. Close is idempotent.
func (parser *Parser) Close() []Frame {
	if parser.closed {
		return nil
	}
	parser.closed = true

	var frames []Frame
	if parser.flushTrailing {
		if len(parser.pending) > 0 {
			if frame, ok := parser.processLine(string(parser.pending)); ok {
				frames = append(frames, frame)
			}
		}
		if frame, ok := parser.dispatch(); ok {
			frames = append(frames, frame)
		}
	}

	parser.pending = nil
	parser.reset()
	return frames
}

// Pending reports how many bytes are buffered waiting for a newline.
func (parser *Parser) Pending() int {
	return len(parser.pending)
}

// processLine applies one complete line to the frame under
// construction. Returns a frame when the line was a blank separator
// closing a complete block.
func (parser *Parser) processLine(line string) (Frame, bool) {
	line = strings.TrimRight(line, "\r")

	if strings.TrimSpace(line) == "" {
		frame, ok := parser.dispatch()
		parser.reset()
		return frame, ok
	}

	switch {
	case strings.HasPrefix(line, "event:"):
		parser.event = strings.TrimSpace(line[len("event:"):])
	case strings.HasPrefix(line, "data:"):
		chunk := strings.TrimSpace(line[len("data:"):])
		if chunk != "" {
			parser.data.WriteString(chunk)
			parser.hasData = true
		}
	}
	return Frame{}, false
}

// dispatch returns the frame under construction if it has both a name
// and a payload.
func (parser *Parser) dispatch() (Frame, bool) {
	if parser.event == "" || !parser.hasData {
		return Frame{}, false
	}
	return Frame{Event: parser.event, Data: parser.data.String()}, true
}

func (parser *Parser) reset() {
	parser.event = ""
	parser.data.Reset()
	parser.hasData = false
}
