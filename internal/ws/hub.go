// Package ws delivers bus events to websocket clients subscribed to room and user topics.
package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"keeper/internal/events"
	"keeper/internal/models"
	"keeper/internal/observability"
)

const sendBuffer = 64

type PresenceTracker interface {
	MarkOnline(ctx context.Context, username string) error
	MarkOffline(ctx context.Context, username string) error
}

type RoomAuthorizer interface {
	CanAccess(ctx context.Context, userID, roomID int64) (bool, error)
}

// client is one websocket connection. Its topics are guarded by the hub lock.
type client struct {
	user   models.User
	info   ConnInfo
	send   chan []byte
	topics map[string]struct{}
	closed bool
}

func newClient(user models.User, info ConnInfo) *client {
	return &client{
		user:   user,
		info:   info,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
	}
}

// Hub tracks topic subscriptions and the number of live connections per user.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*client]struct{}
	online   map[string]int
	presence PresenceTracker
	rooms    RoomAuthorizer
	log      *zap.Logger
}

func NewHub(presence PresenceTracker, rooms RoomAuthorizer, log *zap.Logger) *Hub {
	return &Hub{
		topics:   make(map[string]map[*client]struct{}),
		online:   make(map[string]int),
		presence: presence,
		rooms:    rooms,
		log:      log,
	}
}

// Run relays bus envelopes to subscribers until the subscription ends or ctx is done.
func (h *Hub) Run(ctx context.Context, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.C:
			if !ok {
				return
			}
			h.Deliver(env)
		}
	}
}

// Deliver writes env to every client subscribed to its topic. Clients that cannot keep up are dropped.
func (h *Hub) Deliver(env events.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.log.Error("encode websocket frame", zap.String("topic", env.Topic), zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.topics[env.Topic] {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket client", zap.String("conn_id", c.info.ConnID), zap.String("username", c.user.Username))
		observability.IncWSEvent("ws_slow_consumer")
		h.unregister(c)
	}
	h.revoke(env)
}

// revoke ends room subscriptions once a kick or room deletion has been delivered on the room topic.
func (h *Hub) revoke(env events.Envelope) {
	if !strings.HasPrefix(env.Topic, "room:") {
		return
	}
	var ev struct {
		Type        models.EventType    `json:"type"`
		Participant *models.UserSummary `json:"user_action_participant"`
	}
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return
	}
	if ev.Type != models.EventRoomDeleted && ev.Type != models.EventUserKicked {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.topics[env.Topic] {
		if ev.Type == models.EventUserKicked && (ev.Participant == nil || ev.Participant.Username != c.user.Username) {
			continue
		}
		h.unsubscribeLocked(c, env.Topic)
	}
}

// register adds the client to its user topic and marks the user online on their first connection.
func (h *Hub) register(ctx context.Context, c *client) {
	h.mu.Lock()
	h.subscribeLocked(c, events.UserTopic(c.user.Username))
	h.online[c.user.Username]++
	first := h.online[c.user.Username] == 1
	h.mu.Unlock()

	if first {
		if err := h.presence.MarkOnline(ctx, c.user.Username); err != nil {
			h.log.Warn("mark online failed", zap.String("username", c.user.Username), zap.Error(err))
		}
	}
}

// unregister removes every subscription of the client and marks the user offline after their last connection.
// Calling it twice is harmless.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	for topic := range c.topics {
		h.unsubscribeLocked(c, topic)
	}
	close(c.send)
	h.online[c.user.Username]--
	last := h.online[c.user.Username] <= 0
	if last {
		delete(h.online, c.user.Username)
	}
	h.mu.Unlock()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.presence.MarkOffline(ctx, c.user.Username); err != nil {
			h.log.Warn("mark offline failed", zap.String("username", c.user.Username), zap.Error(err))
		}
	}
}

// subscribeRoom adds the client to a room topic if its user participates in the room.
func (h *Hub) subscribeRoom(ctx context.Context, c *client, roomID int64) (bool, error) {
	ok, err := h.rooms.CanAccess(ctx, c.user.ID, roomID)
	if err != nil || !ok {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return false, nil
	}
	h.subscribeLocked(c, events.RoomTopic(roomID))
	return true, nil
}

func (h *Hub) unsubscribeRoom(c *client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, events.RoomTopic(roomID))
}

func (h *Hub) subscribeLocked(c *client, topic string) {
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*client]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) unsubscribeLocked(c *client, topic string) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(c.topics, topic)
}

// Connections returns the number of live connections for a user.
func (h *Hub) Connections(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[username]
}

func (h *Hub) subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
