// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstream

import (
	"io"
	"time"

	"github.com/bureau-foundation/agentchat/lib/clock"
)

// idleReader arms a timer for the duration of each Read. The timer
// only runs while the reader is blocked on the network, so time spent
// handing responses to a slow consumer never counts as idle.
type idleReader struct {
	source  io.Reader
	timeout time.Duration
	timer   *clock.Timer
}

func newIdleReader(source io.Reader, streamClock clock.Clock, timeout time.Duration, onIdle func()) *idleReader {
	timer := streamClock.AfterFunc(timeout, onIdle)
	timer.Stop()
	return &idleReader{source: source, timeout: timeout, timer: timer}
}

func (reader *idleReader) Read(buffer []byte) (int, error) {
	reader.timer.Reset(reader.timeout)
	count, err := reader.source.Read(buffer)
	reader.timer.Stop()
	return count, err
}

func (reader *idleReader) stop() {
	reader.timer.Stop()
}
