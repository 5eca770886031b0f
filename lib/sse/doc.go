// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sse splits a Server-Sent Events byte stream into frames.
//
// The agent backend uses a simplified dialect of the W3C framing: each
// frame is an "event:" line followed by one or more "data:" lines and
// terminated by a blank line. Data lines are trimmed and concatenated
// without a separator (the backend never splits one JSON document over
// several data lines, so no newline is reinserted). Frames lacking
// either an event name or data are never emitted, and every other line
// shape (comments, "id:", "retry:", noise) is ignored.
//
// [Parser] is push-style: callers hand it whatever chunk the transport
// produced and receive the frames completed by that chunk. It keeps the
// unterminated tail between calls, so the output is independent of how
// the bytes were split. [Scanner] wraps a Parser around an [io.Reader]
// for callers that prefer a pull loop:
//
//	scanner := sse.NewScanner(body)
//	for scanner.Next() {
//	    frame := scanner.Frame()
//	    // frame.Event, frame.Data
//	}
//	if err := scanner.Err(); err != nil {
//	    // transport failure or sse.ErrLineTooLong
//	}
//
// At end of stream an unterminated trailing line is dropped unless the
// parser was built with [WithFlushTrailing].
package sse
