// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package typewriter reveals a message's text a few runes at a time,
// independent of how fast the text arrived. It only ever writes the
// displayed prefix; the ground-truth content and completion state
// belong to the caller.
package typewriter

import (
	"sync"
	"time"

	"github.com/bureau-foundation/agentchat/lib/clock"
)

const (
	// DefaultInterval is the tick period when Options.Interval is zero.
	DefaultInterval = 20 * time.Millisecond

	// DefaultStep is the runes revealed per tick when Options.Step is
	// zero.
	DefaultStep = 2
)

// Target is the message store the presenter reads and writes. Its
// methods are called with the presenter's lock held and must not call
// back into the Presenter. Callers in turn must not hold whatever lock
// Target takes while calling Presenter methods.
type Target interface {
	// Content returns the current text of message id and whether the
	// message is complete. ok is false when the message no longer
	// exists.
	Content(id string) (content string, complete bool, ok bool)

	// SetDisplayed stores the visible prefix of message id.
	SetDisplayed(id string, displayed string)
}

// Options configures a Presenter.
type Options struct {
	Interval time.Duration
	Step     int
	Clock    clock.Clock

	// OnTick, when set, runs after every tick that changed the
	// displayed text. Used by front ends to schedule a redraw.
	OnTick func(id string)
}

// Presenter runs at most one reveal loop at a time.
type Presenter struct {
	target   Target
	clock    clock.Clock
	interval time.Duration
	step     int
	onTick   func(string)

	mu     sync.Mutex
	active *run
}

type run struct {
	id      string
	shown   int
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a Presenter over target.
func New(target Target, options Options) *Presenter {
	presenter := &Presenter{
		target:   target,
		clock:    options.Clock,
		interval: options.Interval,
		step:     options.Step,
		onTick:   options.OnTick,
	}
	if presenter.clock == nil {
		presenter.clock = clock.Real()
	}
	if presenter.interval <= 0 {
		presenter.interval = DefaultInterval
	}
	if presenter.step <= 0 {
		presenter.step = DefaultStep
	}
	return presenter
}

// Start begins revealing message id from its first rune. Starting the message that is already running is a no-op;
// starting a different one stops the previous run where it is.
func (presenter *Presenter) Start(id string) {
	presenter.mu.Lock()
	if presenter.active != nil && presenter.active.id == id {
		presenter.mu.Unlock()
		return
	}
	previous := presenter.detachLocked()

	current := &run{id: id, stop: make(chan struct{}), done: make(chan struct{})}
	presenter.active = current
	ticker := presenter.clock.NewTicker(presenter.interval)
	presenter.mu.Unlock()

	if previous != nil {
		<-previous.done
	}
	go presenter.loop(current, ticker)
}

// IsActive reports whether a reveal loop is running.
func (presenter *Presenter) IsActive() bool {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	return presenter.active != nil
}

// ActiveID returns the message being revealed, or "".
func (presenter *Presenter) ActiveID() string {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	if presenter.active == nil {
		return ""
	}
	return presenter.active.id
}

// Complete sets the active message's displayed text to its full
// content and stops the loop. No-op when nothing is running.
func (presenter *Presenter) Complete() {
	presenter.mu.Lock()
	current := presenter.detachLocked()
	if current != nil {
		if content, _, ok := presenter.target.Content(current.id); ok {
			presenter.target.SetDisplayed(current.id, content)
		}
	}
	presenter.mu.Unlock()

	if current != nil {
		<-current.done
	}
}

// Stop ends the loop and leaves the displayed text where it is.
func (presenter *Presenter) Stop() {
	presenter.mu.Lock()
	current := presenter.detachLocked()
	presenter.mu.Unlock()

	if current != nil {
		<-current.done
	}
}

// detachLocked marks the active run stopped so no further tick writes
// to the target, and returns it for the caller to wait on.
func (presenter *Presenter) detachLocked() *run {
	current := presenter.active
	if current == nil {
		return nil
	}
	current.stopped = true
	close(current.stop)
	presenter.active = nil
	return current
}

func (presenter *Presenter) loop(current *run, ticker *clock.Ticker) {
	defer close(current.done)
	defer ticker.Stop()

	for {
		select {
		case <-current.stop:
			return
		case <-ticker.C:
			changed, finished := presenter.tick(current)
			if changed && presenter.onTick != nil {
				presenter.onTick(current.id)
			}
			if finished {
				return
			}
		}
	}
}

// tick reveals the next step. It ends the run once the message is
// complete and fully shown, or has disappeared.
func (presenter *Presenter) tick(current *run) (changed, finished bool) {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()

	if current.stopped {
		return false, true
	}
	content, complete, ok := presenter.target.Content(current.id)
	if !ok {
		presenter.detachLocked()
		return false, true
	}

	runes := []rune(content)
	next := min(current.shown+presenter.step, len(runes))
	if next != current.shown {
		current.shown = next
		presenter.target.SetDisplayed(current.id, string(runes[:next]))
		changed = true
	}
	if complete && current.shown >= len(runes) {
		presenter.detachLocked()
		return changed, true
	}
	return changed, false
}
