package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"keeper/internal/mocks"
	"keeper/internal/models"
)

type published struct {
	Topic string
	Event models.ChatEvent
}

type recordingBus struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (b *recordingBus) Publish(_ context.Context, topic, _ string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Topic: topic, Event: payload.(models.ChatEvent)})
	return b.err
}

func (b *recordingBus) ofType(t models.EventType) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, p := range b.events {
		if p.Event.Type == t {
			out = append(out, p)
		}
	}
	return out
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type fixture struct {
	db         *memDB
	store      memStore
	bus        *recordingBus
	presence   *mocks.PresenceMock
	queue      *mocks.NotificationQueueMock
	messages   *MessageEngine
	visibility *VisibilityManager
	friends    *FriendshipEngine
	rooms      *RoomService

	alice, bob, carol models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	store := memStore{db: db}
	bus := &recordingBus{}
	presence := new(mocks.PresenceMock)
	queue := new(mocks.NotificationQueueMock)
	log := zap.NewNop()

	visibility := NewVisibilityManager(store, bus, log)
	f := &fixture{
		db:         db,
		store:      store,
		bus:        bus,
		presence:   presence,
		queue:      queue,
		visibility: visibility,
		messages:   NewMessageEngine(store, visibility, presence, queue, bus, log),
		friends:    NewFriendshipEngine(store, bus, log),
		rooms:      NewRoomService(store, bus, log),
	}
	f.alice = f.addUser("alice", "")
	f.bob = f.addUser("bob", "bob-device")
	f.carol = f.addUser("carol", "carol-device")
	return f
}

func (f *fixture) addUser(username, pushToken string) models.User {
	u := models.User{ID: f.db.id(), PublicID: "pub-" + username, Username: username, PushToken: pushToken, CreatedAt: time.Now()}
	f.db.users[u.ID] = u
	return u
}

func (f *fixture) befriend(t *testing.T, a, b models.User) {
	t.Helper()
	ctx := context.Background()
	if err := f.friends.SendRequest(ctx, a.Username, b.PublicID); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if err := f.friends.Accept(ctx, b.Username, a.Username); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func (f *fixture) dm(t *testing.T, a, b models.User) models.RoomView {
	t.Helper()
	f.befriend(t, a, b)
	room, err := f.visibility.GetOrCreateDMChannel(context.Background(), a, b.Username)
	if err != nil {
		t.Fatalf("open dm: %v", err)
	}
	f.bus.reset()
	return room
}

func (f *fixture) group(t *testing.T, owner models.User, members ...models.User) models.RoomView {
	t.Helper()
	ctx := context.Background()
	room, err := f.rooms.CreateGroup(ctx, owner, "general")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, m := range members {
		if _, err := f.rooms.JoinGroup(ctx, m, room.InviteCode); err != nil {
			t.Fatalf("join group: %v", err)
		}
	}
	f.bus.reset()
	return room
}

func (f *fixture) send(t *testing.T, actor models.User, roomID int64, content string) models.Message {
	t.Helper()
	msg, err := f.messages.SendMessage(context.Background(), actor, roomID, &content, nil)
	if err != nil || msg == nil {
		t.Fatalf("send message: %v", err)
	}
	return *msg
}

func (f *fixture) offline(username string) {
	f.presence.On("IsOnline", mock.Anything, username).Return(false, nil).Maybe()
}

func (f *fixture) online(username string) {
	f.presence.On("IsOnline", mock.Anything, username).Return(true, nil).Maybe()
}
