// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel used when none is
// configured.
const DefaultRedisChannel = "agentchat:sessions"

// RedisOptions configures a Redis bus.
type RedisOptions struct {
	// URL is a redis:// or rediss:// URL, as accepted by
	// redis.ParseURL.
	URL string

	// Channel is the pub/sub channel name.
	Channel string

	Logger *slog.Logger
}

// Redis is a Bus over Redis pub/sub, for front ends running in
// separate processes.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis connects to the server and verifies it answers PING.
func NewRedis(ctx context.Context, options RedisOptions) (*Redis, error) {
	redisOptions, err := redis.ParseURL(options.URL)
	if err != nil {
		return nil, fmt.Errorf("notify: parsing redis URL: %w", err)
	}
	client := redis.NewClient(redisOptions)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("notify: connecting to redis at %s: %w", redisOptions.Addr, err)
	}
	return newRedisWithClient(client, options), nil
}

func newRedisWithClient(client *redis.Client, options RedisOptions) *Redis {
	channel := options.Channel
	if channel == "" {
		channel = DefaultRedisChannel
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Redis{client: client, channel: channel, logger: logger}
}

// Publish sends event on the configured channel.
func (bus *Redis) Publish(ctx context.Context, event Event) error {
	payload, err := sonic.MarshalString(event)
	if err != nil {
		return fmt.Errorf("notify: encoding event: %w", err)
	}
	if err := bus.client.Publish(ctx, bus.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publishing to %s: %w", bus.channel, err)
	}
	return nil
}

// Subscribe opens a pub/sub connection. The subscription is confirmed
// before Subscribe returns, so events published afterwards are not
// missed. The connection is released when ctx ends or the subscription
// is closed, whichever comes first.
func (bus *Redis) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := bus.client.Subscribe(ctx, bus.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("notify: subscribing to %s: %w", bus.channel, err)
	}

	forwardCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-forwardCtx.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := sonic.UnmarshalString(message.Payload, &event); err != nil {
					bus.logger.Warn("dropping malformed notification",
						"channel", message.Channel, "error", err)
					continue
				}
				select {
				case events <- event:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return &Subscription{
		events: events,
		close: func() {
			once.Do(func() {
				cancel()
				<-done
			})
		},
	}, nil
}

// Close releases the Redis connection pool.
func (bus *Redis) Close() error {
	return bus.client.Close()
}
