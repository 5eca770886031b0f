// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the stream and conversation
// tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-deadline
// pattern so tests that wait on stream channels never hang the suite
// when a goroutine wedges. They are the only place tests touch the
// wall clock; everything else uses lib/clock's fake.
package testutil
