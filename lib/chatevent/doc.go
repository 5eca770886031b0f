// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatevent decodes agent stream frames into typed events.
//
// The backend's payloads are loosely typed JSON. [Decode] maps each
// known event name to one variant of the sealed [Event] union and
// extracts fields one at a time, so a field with an unexpected shape
// reads as absent rather than poisoning the event. Payloads that are
// not JSON at all are treated as a bare delta.
package chatevent
