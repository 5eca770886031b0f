// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"errors"
	"io"
)

// DefaultMaxLineBytes is the line limit a Scanner applies when the
// caller does not pass [WithMaxLineBytes].
const DefaultMaxLineBytes = 1024 * 1024

const readChunkSize = 32 * 1024

// Scanner reads frames from an [io.Reader]. Each Read result is fed to
// a [Parser] as-is, so frames surface as soon as their terminating
// blank line arrives rather than when a buffer fills.
//
// Scanner is not safe for concurrent use.
type Scanner struct {
	reader io.Reader
	parser *Parser
	buffer []byte

	queue   []Frame
	current Frame
	err     error
	eof     bool
}

// NewScanner creates a scanner over reader. Options are passed to the
// underlying Parser; a Scanner always bounds its line length, using
// [DefaultMaxLineBytes] unless overridden.
func NewScanner(reader io.Reader, options ...Option) *Scanner {
	parser := NewParser(append([]Option{WithMaxLineBytes(DefaultMaxLineBytes)}, options...)...)
	return &Scanner{
		reader: reader,
		parser: parser,
		buffer: make([]byte, readChunkSize),
	}
}

// Next advances to the next frame. Returns false at end of stream or
// on error; call [Scanner.Err] to tell the two apart.
func (scanner *Scanner) Next() bool {
	scanner.current = Frame{}
	for {
		if len(scanner.queue) > 0 {
			scanner.current = scanner.queue[0]
			scanner.queue = scanner.queue[1:]
			return true
		}
		if scanner.eof || scanner.err != nil {
			return false
		}

		count, readErr := scanner.reader.Read(scanner.buffer)
		if count > 0 {
			frames, err := scanner.parser.Feed(scanner.buffer[:count])
			scanner.queue = append(scanner.queue, frames...)
			if err != nil {
				scanner.err = err
				// Frames completed before the overflow are still
				// delivered; the error surfaces once they drain.
				continue
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				scanner.eof = true
				scanner.queue = append(scanner.queue, scanner.parser.Close()...)
				continue
			}
			scanner.err = readErr
		}
	}
}

// Frame returns the frame produced by the last successful [Scanner.Next].
func (scanner *Scanner) Frame() Frame {
	return scanner.current
}

// Err returns the first non-EOF error encountered.
func (scanner *Scanner) Err() error {
	return scanner.err
}
