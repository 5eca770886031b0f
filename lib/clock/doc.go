// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// typewriter presenter and the stream idle watchdog.
//
// Production code receives [Real]. Tests receive [Fake], whose time
// moves only when the test calls Advance, so typewriter ticks and idle
// timeouts fire deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	presenter := typewriter.New(target, typewriter.WithClock(fake))
//	presenter.Start("m1")
//	fake.WaitForTimers(1)
//	fake.Advance(typewriter.DefaultInterval)
package clock
