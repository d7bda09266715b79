package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keeper/internal/auth"
	"keeper/internal/events"
	"keeper/internal/mocks"
	"keeper/internal/models"
)

var alice = models.User{ID: 1, Username: "alice"}

func newTestHub() (*Hub, *mocks.PresenceMock, *mocks.GroupServiceMock) {
	presence := new(mocks.PresenceMock)
	rooms := new(mocks.GroupServiceMock)
	return NewHub(presence, rooms, zap.NewNop()), presence, rooms
}

func envelope(topic string) events.Envelope {
	return events.Envelope{Topic: topic, Event: events.EventName, Payload: json.RawMessage(`{"type":"CHAT"}`)}
}

func TestHubTracksPresencePerUser(t *testing.T) {
	hub, presence, _ := newTestHub()
	presence.On("MarkOnline", mock.Anything, "alice").Return(nil).Once()
	presence.On("MarkOffline", mock.Anything, "alice").Return(nil).Once()

	first := newClient(alice, ConnInfo{ConnID: "1"})
	second := newClient(alice, ConnInfo{ConnID: "2"})
	hub.register(context.Background(), first)
	hub.register(context.Background(), second)
	assert.Equal(t, 2, hub.Connections("alice"))
	assert.Equal(t, 2, hub.subscribers(events.UserTopic("alice")))

	hub.unregister(first)
	hub.unregister(first)
	assert.Equal(t, 1, hub.Connections("alice"))
	presence.AssertNotCalled(t, "MarkOffline", mock.Anything, "alice")

	hub.unregister(second)
	assert.Equal(t, 0, hub.Connections("alice"))
	assert.Equal(t, 0, hub.subscribers(events.UserTopic("alice")))
	presence.AssertExpectations(t)
}

func TestHubDeliversOnlyToSubscribedTopics(t *testing.T) {
	hub, presence, rooms := newTestHub()
	presence.On("MarkOnline", mock.Anything, mock.Anything).Return(nil)
	rooms.On("CanAccess", mock.Anything, alice.ID, int64(5)).Return(true, nil)
	rooms.On("CanAccess", mock.Anything, alice.ID, int64(6)).Return(false, nil)

	c := newClient(alice, ConnInfo{ConnID: "1"})
	hub.register(context.Background(), c)

	ok, err := hub.subscribeRoom(context.Background(), c, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = hub.subscribeRoom(context.Background(), c, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	hub.Deliver(envelope(events.RoomTopic(5)))
	hub.Deliver(envelope(events.RoomTopic(6)))
	hub.Deliver(envelope(events.UserTopic("alice")))
	hub.Deliver(envelope(events.UserTopic("bob")))

	require.Len(t, c.send, 2)
	var got events.Envelope
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, "room:5", got.Topic)
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, "user:alice", got.Topic)

	hub.unsubscribeRoom(c, 5)
	hub.Deliver(envelope(events.RoomTopic(5)))
	assert.Empty(t, c.send)
}

func TestHubRevokesRoomSubscriptionsOnKickAndDelete(t *testing.T) {
	hub, presence, rooms := newTestHub()
	presence.On("MarkOnline", mock.Anything, mock.Anything).Return(nil)
	rooms.On("CanAccess", mock.Anything, mock.Anything, int64(5)).Return(true, nil)
	bob := models.User{ID: 2, Username: "bob"}

	a := newClient(alice, ConnInfo{ConnID: "1"})
	b := newClient(bob, ConnInfo{ConnID: "2"})
	for _, c := range []*client{a, b} {
		hub.register(context.Background(), c)
		ok, err := hub.subscribeRoom(context.Background(), c, 5)
		require.NoError(t, err)
		require.True(t, ok)
	}

	kicked := events.Envelope{Topic: events.RoomTopic(5), Event: events.EventName,
		Payload: json.RawMessage(`{"type":"USER_KICKED","room_id":5,"user_action_participant":{"id":2,"username":"bob"}}`)}
	hub.Deliver(kicked)

	assert.Len(t, b.send, 1, "kicked user still receives the kick")
	assert.Len(t, a.send, 1)
	assert.Equal(t, 1, hub.subscribers(events.RoomTopic(5)))
	assert.NotContains(t, b.topics, events.RoomTopic(5))

	hub.Deliver(envelope(events.RoomTopic(5)))
	assert.Len(t, b.send, 1)
	assert.Len(t, a.send, 2)

	deleted := events.Envelope{Topic: events.RoomTopic(5), Event: events.EventName,
		Payload: json.RawMessage(`{"type":"ROOM_DELETED","room_id":5}`)}
	hub.Deliver(deleted)
	assert.Len(t, a.send, 3)
	assert.Equal(t, 0, hub.subscribers(events.RoomTopic(5)))
	assert.Equal(t, 1, hub.subscribers(events.UserTopic("alice")))
}

func TestHubDropsSlowClients(t *testing.T) {
	hub, presence, _ := newTestHub()
	presence.On("MarkOnline", mock.Anything, "alice").Return(nil).Once()
	presence.On("MarkOffline", mock.Anything, "alice").Return(nil).Once()

	c := newClient(alice, ConnInfo{ConnID: "1"})
	hub.register(context.Background(), c)
	for i := 0; i < sendBuffer+1; i++ {
		hub.Deliver(envelope(events.UserTopic("alice")))
	}

	assert.Equal(t, 0, hub.Connections("alice"))
	assert.Equal(t, 0, hub.subscribers(events.UserTopic("alice")))
	presence.AssertExpectations(t)
}

func TestHandlerEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub, presence, rooms := newTestHub()
	actors := new(mocks.ActorResolverMock)
	presence.On("MarkOnline", mock.Anything, "alice").Return(nil)
	presence.On("MarkOffline", mock.Anything, "alice").Return(nil)
	rooms.On("CanAccess", mock.Anything, alice.ID, int64(5)).Return(true, nil)
	rooms.On("CanAccess", mock.Anything, alice.ID, int64(6)).Return(false, nil)
	actors.On("Resolve", mock.Anything, "good").Return(alice, nil)
	actors.On("Resolve", mock.Anything, "bad").Return(models.User{}, auth.ErrInvalidToken)

	r := gin.New()
	r.GET("/ws", NewHandler(hub, actors, zap.NewNop()).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token="

	_, resp, err := websocket.DefaultDialer.Dial(url+"bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"good", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connections("alice") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(inbound{Action: "subscribe", RoomID: 6}))
	var r1 reply
	require.NoError(t, conn.ReadJSON(&r1))
	assert.Equal(t, reply{Type: "error", RoomID: 6, Error: "forbidden"}, r1)

	require.NoError(t, conn.WriteJSON(inbound{Action: "subscribe", RoomID: 5}))
	var r2 reply
	require.NoError(t, conn.ReadJSON(&r2))
	assert.Equal(t, reply{Type: "subscribed", RoomID: 5}, r2)

	hub.Deliver(envelope(events.RoomTopic(5)))
	var env events.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "room:5", env.Topic)
	assert.JSONEq(t, `{"type":"CHAT"}`, string(env.Payload))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connections("alice") == 0 }, time.Second, 10*time.Millisecond)
}
