// Package events fans chat events out to live subscribers through Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventName is the envelope event every chat payload travels under.
const EventName = "new_event"

// Envelope is the unit carried on the Redis channel. Topic selects the subscribers.
type Envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func RoomTopic(roomID int64) string {
	return fmt.Sprintf("room:%d", roomID)
}

func UserTopic(username string) string {
	return "user:" + username
}

// RedisBus publishes envelopes on one Redis channel shared by every instance.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBus(client *redis.Client, channel string, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, topic, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Envelope{Topic: topic, Event: event, Payload: body})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscription delivers envelopes until closed. C is closed once the relay exits.
type Subscription struct {
	ps        *redis.PubSub
	C         <-chan Envelope
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// Subscribe returns once Redis has confirmed the subscription.
func (b *RedisBus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Envelope, 64)
	sub := &Subscription{ps: ps, C: out, done: make(chan struct{}), stopped: make(chan struct{})}
	go func() {
		defer close(sub.stopped)
		defer close(out)
		for msg := range ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("dropping malformed envelope", zap.Error(err))
				continue
			}
			select {
			case out <- env:
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}
