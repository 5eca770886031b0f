// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"sync"
)

// Memory is an in-process Bus. The zero value is ready to use.
type Memory struct {
	mu          sync.Mutex
	subscribers map[*memorySubscriber]struct{}
}

type memorySubscriber struct {
	events chan Event
	once   sync.Once
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish delivers event to every subscriber whose queue has room.
func (bus *Memory) Publish(_ context.Context, event Event) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for subscriber := range bus.subscribers {
		select {
		case subscriber.events <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber that is removed on Close or when
// ctx ends.
func (bus *Memory) Subscribe(ctx context.Context) (*Subscription, error) {
	subscriber := &memorySubscriber{events: make(chan Event, subscriberBuffer)}

	bus.mu.Lock()
	if bus.subscribers == nil {
		bus.subscribers = make(map[*memorySubscriber]struct{})
	}
	bus.subscribers[subscriber] = struct{}{}
	bus.mu.Unlock()

	remove := func() {
		subscriber.once.Do(func() {
			bus.mu.Lock()
			delete(bus.subscribers, subscriber)
			close(subscriber.events)
			bus.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return &Subscription{
		events: subscriber.events,
		close: func() {
			stop()
			remove()
		},
	}, nil
}

// SubscriberCount returns the number of registered subscribers.
func (bus *Memory) SubscriberCount() int {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return len(bus.subscribers)
}
