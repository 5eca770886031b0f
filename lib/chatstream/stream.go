// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/agentchat/lib/chatevent"
	"github.com/bureau-foundation/agentchat/lib/clock"
	"github.com/bureau-foundation/agentchat/lib/sse"
)

// Response is the controller's view of one decoded event.
type Response struct {
	// FullContent is the concatenation of every responding delta seen
	// so far on this stream. It never shrinks.
	FullContent string

	// CurrentChunk is this event's delta. Empty for non-responding
	// events.
	CurrentChunk string

	// Kind is the event variant.
	Kind chatevent.Kind

	// IsComplete is true only for the terminal event (end or error).
	IsComplete bool

	// IsError is true only for an error event.
	IsError bool

	// Event is the decoded event, for session ids and side-channel
	// fields.
	Event chatevent.Event
}

// Stream is one in-flight request. Create with [Client.Open].
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	logger *slog.Logger

	idleTimeout time.Duration
	clock       clock.Clock

	events chan Response
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once

	mu        sync.Mutex
	err       error
	cancelled bool
	idle      bool
	terminal  bool
}

func newStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, idleTimeout time.Duration, streamClock clock.Clock, logger *slog.Logger) *Stream {
	return &Stream{
		ctx:         ctx,
		cancel:      cancel,
		body:        body,
		logger:      logger,
		idleTimeout: idleTimeout,
		clock:       streamClock,
		events:      make(chan Response),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Events delivers responses in arrival order. The channel is closed
// after the terminal event, on cancellation, or when the connection
// fails; check [Stream.Err] afterwards.
func (stream *Stream) Events() <-chan Response {
	return stream.events
}

// Done is closed once the reader goroutine has exited and the body is
// released.
func (stream *Stream) Done() <-chan struct{} {
	return stream.done
}

// Err reports why the stream ended without a terminal event: a read
// error, [ErrStreamClosed], or [ErrIdleTimeout]. It returns nil while
// the stream is running, after a terminal event, and after Cancel.
func (stream *Stream) Err() error {
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return stream.err
}

// Cancel aborts the stream and waits for the reader goroutine to exit.
// When Cancel returns, the Events channel is closed and no further
// response will be received from it. Calling Cancel again, or after
// the stream finished on its own, is a no-op.
func (stream *Stream) Cancel() {
	stream.stopOnce.Do(func() {
		stream.mu.Lock()
		finished := stream.terminal || stream.err != nil
		if !finished {
			stream.cancelled = true
		}
		stream.mu.Unlock()

		close(stream.stop)
		stream.cancel()
		stream.body.Close()
		if !finished {
			stream.logger.Info("stream cancelled")
		}
	})
	<-stream.done
}

// Cancelled reports whether Cancel interrupted the stream before it
// finished.
func (stream *Stream) Cancelled() bool {
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return stream.cancelled
}

// abortIdle is the watchdog callback.
func (stream *Stream) abortIdle() {
	stream.mu.Lock()
	stream.idle = true
	stream.mu.Unlock()
	stream.logger.Warn("stream idle, aborting", "idle_timeout", stream.idleTimeout)
	stream.cancel()
	stream.body.Close()
}

func (stream *Stream) run(scanOptions []sse.Option) {
	defer close(stream.done)
	defer close(stream.events)
	defer stream.cancel()
	defer releaseDecoder(stream.body)
	defer stream.body.Close()

	var reader io.Reader = stream.body
	if stream.idleTimeout > 0 {
		watched := newIdleReader(stream.body, stream.clock, stream.idleTimeout, stream.abortIdle)
		defer watched.stop()
		reader = watched
	}

	scanner := sse.NewScanner(reader, scanOptions...)
	var content strings.Builder
	for scanner.Next() {
		frame := scanner.Frame()
		event, ok := chatevent.Decode(frame.Event, frame.Data)
		if !ok {
			stream.logger.Debug("ignoring unknown event", "event", frame.Event)
			continue
		}

		response := Response{Kind: event.Kind(), Event: event}
		switch event := event.(type) {
		case chatevent.Responding:
			content.WriteString(event.Delta)
			response.CurrentChunk = event.Delta
		case chatevent.End:
			response.IsComplete = true
		case chatevent.Error:
			response.IsComplete = true
			response.IsError = true
		}
		response.FullContent = content.String()

		if !stream.deliver(response) {
			stream.finish(nil)
			return
		}
		if response.IsComplete {
			stream.mu.Lock()
			stream.terminal = true
			stream.mu.Unlock()
			stream.logger.Info("stream finished",
				"kind", string(response.Kind),
				"session_id", event.Metadata().SessionID,
				"content_length", len(response.FullContent))
			return
		}
	}
	stream.finish(scanner.Err())
}

// deliver hands response to the consumer unless the stream has been
// cancelled. Events is unbuffered, so a consumer that calls Cancel
// cannot be holding an undelivered response.
func (stream *Stream) deliver(response Response) bool {
	select {
	case <-stream.stop:
		return false
	case <-stream.ctx.Done():
		return false
	default:
	}
	select {
	case stream.events <- response:
		return true
	case <-stream.stop:
		return false
	case <-stream.ctx.Done():
		return false
	}
}

// finish records why a stream ended without a terminal event.
func (stream *Stream) finish(readErr error) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	switch {
	case stream.cancelled:
		return
	case stream.idle:
		stream.err = ErrIdleTimeout
	case stream.ctx.Err() != nil:
		// The caller's context ended. Treated like Cancel.
		stream.cancelled = true
		stream.logger.Info("stream cancelled by context", "cause", context.Cause(stream.ctx))
		return
	case readErr != nil:
		stream.err = fmt.Errorf("chatstream: reading stream: %w", readErr)
	default:
		stream.err = ErrStreamClosed
	}
	stream.logger.Warn("stream ended without terminal event", "error", stream.err)
}
