package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"keeper/internal/models"
)

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) GetMessages(ctx context.Context, actor models.User, roomID int64, page, size int) ([]models.MessageView, error) {
	args := m.Called(ctx, actor, roomID, page, size)
	msgs, _ := args.Get(0).([]models.MessageView)
	return msgs, args.Error(1)
}

func (m *MessageServiceMock) GetPinned(ctx context.Context, actor models.User, roomID int64) ([]models.MessageView, error) {
	args := m.Called(ctx, actor, roomID)
	msgs, _ := args.Get(0).([]models.MessageView)
	return msgs, args.Error(1)
}

func (m *MessageServiceMock) UpdateLinkPreview(ctx context.Context, messageID int64, preview models.LinkPreview) (models.MessageView, error) {
	args := m.Called(ctx, messageID, preview)
	return args.Get(0).(models.MessageView), args.Error(1)
}

type DirectMessageServiceMock struct {
	mock.Mock
}

func (m *DirectMessageServiceMock) GetOrCreateDMChannel(ctx context.Context, actor models.User, otherUsername string) (models.RoomView, error) {
	args := m.Called(ctx, actor, otherUsername)
	return args.Get(0).(models.RoomView), args.Error(1)
}

func (m *DirectMessageServiceMock) ListDirectMessages(ctx context.Context, actor models.User, page, size int) ([]models.RoomView, error) {
	args := m.Called(ctx, actor, page, size)
	rooms, _ := args.Get(0).([]models.RoomView)
	return rooms, args.Error(1)
}

func (m *DirectMessageServiceMock) Hide(ctx context.Context, actor models.User, roomID int64) error {
	args := m.Called(ctx, actor, roomID)
	return args.Error(0)
}

type GroupServiceMock struct {
	mock.Mock
}

func (m *GroupServiceMock) CreateGroup(ctx context.Context, actor models.User, name string) (models.RoomView, error) {
	args := m.Called(ctx, actor, name)
	return args.Get(0).(models.RoomView), args.Error(1)
}

func (m *GroupServiceMock) JoinGroup(ctx context.Context, actor models.User, inviteCode string) (models.RoomView, error) {
	args := m.Called(ctx, actor, inviteCode)
	return args.Get(0).(models.RoomView), args.Error(1)
}

func (m *GroupServiceMock) ListGroups(ctx context.Context, actor models.User, page, size int) ([]models.RoomView, error) {
	args := m.Called(ctx, actor, page, size)
	rooms, _ := args.Get(0).([]models.RoomView)
	return rooms, args.Error(1)
}

func (m *GroupServiceMock) RenameGroup(ctx context.Context, actor models.User, roomID int64, name string) (models.RoomView, error) {
	args := m.Called(ctx, actor, roomID, name)
	return args.Get(0).(models.RoomView), args.Error(1)
}

func (m *GroupServiceMock) DeleteGroup(ctx context.Context, actor models.User, roomID int64) error {
	return m.Called(ctx, actor, roomID).Error(0)
}

func (m *GroupServiceMock) KickParticipant(ctx context.Context, actor models.User, roomID, userID int64) error {
	return m.Called(ctx, actor, roomID, userID).Error(0)
}

func (m *GroupServiceMock) CanAccess(ctx context.Context, userID, roomID int64) (bool, error) {
	args := m.Called(ctx, userID, roomID)
	return args.Bool(0), args.Error(1)
}

type FriendshipServiceMock struct {
	mock.Mock
}

func (m *FriendshipServiceMock) SendRequest(ctx context.Context, requesterUsername, addresseePublicID string) error {
	return m.Called(ctx, requesterUsername, addresseePublicID).Error(0)
}

func (m *FriendshipServiceMock) Accept(ctx context.Context, currentUsername, requesterUsername string) error {
	return m.Called(ctx, currentUsername, requesterUsername).Error(0)
}

func (m *FriendshipServiceMock) Decline(ctx context.Context, currentUsername, requesterUsername string) error {
	return m.Called(ctx, currentUsername, requesterUsername).Error(0)
}

func (m *FriendshipServiceMock) Cancel(ctx context.Context, requesterUsername, addresseeUsername string) error {
	return m.Called(ctx, requesterUsername, addresseeUsername).Error(0)
}

func (m *FriendshipServiceMock) Remove(ctx context.Context, currentUsername, friendUsername string) error {
	return m.Called(ctx, currentUsername, friendUsername).Error(0)
}

func (m *FriendshipServiceMock) ListFriends(ctx context.Context, username string) ([]models.UserSummary, error) {
	args := m.Called(ctx, username)
	friends, _ := args.Get(0).([]models.UserSummary)
	return friends, args.Error(1)
}

func (m *FriendshipServiceMock) ListPending(ctx context.Context, username string) ([]models.PendingRequest, error) {
	args := m.Called(ctx, username)
	pending, _ := args.Get(0).([]models.PendingRequest)
	return pending, args.Error(1)
}

type PushTokenStoreMock struct {
	mock.Mock
}

func (m *PushTokenStoreMock) UpdatePushToken(ctx context.Context, username, token string) error {
	return m.Called(ctx, username, token).Error(0)
}

type OnlineListerMock struct {
	mock.Mock
}

func (m *OnlineListerMock) Online(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]string)
	return users, args.Error(1)
}
