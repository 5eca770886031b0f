// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatstream owns one in-flight agent request: it POSTs the
// message, parses the Server-Sent Events reply with lib/sse, decodes
// frames with lib/chatevent, and delivers one [Response] per event
// while accumulating the assistant's full text.
//
// [Client.Open] returns once the response headers arrive. Transport
// failures and non-2xx statuses are returned from Open directly and
// never produce a Response. After that, responses arrive on
// [Stream.Events] in strict arrival order until the first terminal
// event (end or error), at which point the channel closes. A stream
// that ends any other way closes the channel and reports why through
// [Stream.Err].
//
//	stream, err := client.Open(ctx, chatstream.Request{Content: "hi"})
//	if err != nil {
//	    return err
//	}
//	defer stream.Cancel()
//	for response := range stream.Events() {
//	    render(response.FullContent)
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// [Stream.Cancel] aborts the connection and guarantees no further
// responses are delivered to a consumer that calls it. It is
// idempotent and safe after the stream has finished. Cancellation is
// not an error: Err returns nil for a cancelled stream.
//
// An optional idle timeout aborts a stream whose connection goes quiet
// (no bytes for the configured window) with [ErrIdleTimeout]. The
// window only runs while the reader is waiting on the network, so a
// slow consumer never trips it.
package chatstream
