// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat turns stream responses into a conversation transcript.
//
// [Assembler] is the state machine: it owns a [Transcript] and the
// conversation's session id, applies one response at a time, and
// reports the side effects the caller must perform (start or complete
// the typewriter, publish a sessions-changed notification, report a
// newly learned session id). It does no I/O and takes no locks.
//
// [Conversation] drives an Assembler for one chat view. It opens a
// stream per turn, feeds responses to the Assembler from a single
// consumer goroutine, runs the typewriter over the transcript, and
// fans out change callbacks. Starting a new turn first cancels the
// previous one and waits for its consumer to exit, so responses from
// an old stream never interleave with a new one.
//
// Turn lifecycle:
//
//	Idle -> Connecting -> Streaming -> Completed | Errored | Cancelled
//
// The three terminal phases are sinks until the next Send.
package chat
