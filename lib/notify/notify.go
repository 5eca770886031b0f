// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify carries "sessions changed" signals from the chat core
// to whatever displays the session list: a sidebar in the same process
// ([Memory]) or other processes sharing a Redis server ([Redis]).
//
// Delivery is best-effort. A subscriber that falls behind loses
// events rather than blocking the publisher; consumers treat every
// event as "reload the list", so a dropped duplicate costs nothing.
package notify

import (
	"context"
	"time"
)

// Kind names what changed.
type Kind string

const (
	// KindSessionCreated is published the first time a conversation
	// learns its backend session id.
	KindSessionCreated Kind = "session_created"

	// KindSessionUpdated is published when a turn finishes, so list
	// ordering and titles can refresh.
	KindSessionUpdated Kind = "session_updated"

	// KindSessionDeleted is published after a session is removed.
	KindSessionDeleted Kind = "session_deleted"
)

// Event is one change notification.
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// Bus publishes events to every live subscriber.
type Bus interface {
	// Publish sends event. Memory buses never fail; network buses
	// return transport errors.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a new subscriber. Events published after
	// Subscribe returns are delivered on the subscription's channel
	// until Close is called or ctx ends.
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Subscription is one registered listener.
type Subscription struct {
	events <-chan Event
	close  func()
}

// Events delivers notifications. Closed after Close.
func (subscription *Subscription) Events() <-chan Event {
	return subscription.events
}

// Close unregisters the subscriber. Safe to call more than once.
func (subscription *Subscription) Close() {
	subscription.close()
}

// subscriberBuffer is the per-subscriber queue depth.
const subscriberBuffer = 16
