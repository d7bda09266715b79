package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"keeper/internal/models"
)

type ActorResolverMock struct {
	mock.Mock
}

func (m *ActorResolverMock) Resolve(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.User), args.Error(1)
}

type MessageHandlerMock struct {
	mock.Mock
}

func (m *MessageHandlerMock) SendMessage(ctx context.Context, actor models.User, roomID int64, content *string, replyToID *int64) (*models.Message, error) {
	args := m.Called(ctx, actor, roomID, content, replyToID)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MessageHandlerMock) EditMessage(ctx context.Context, actor models.User, messageID int64, content string) error {
	args := m.Called(ctx, actor, messageID, content)
	return args.Error(0)
}

func (m *MessageHandlerMock) DeleteMessage(ctx context.Context, actor models.User, messageID int64) error {
	args := m.Called(ctx, actor, messageID)
	return args.Error(0)
}

func (m *MessageHandlerMock) TogglePin(ctx context.Context, actor models.User, messageID int64) (models.MessageView, error) {
	args := m.Called(ctx, actor, messageID)
	return args.Get(0).(models.MessageView), args.Error(1)
}

func (m *MessageHandlerMock) ToggleReaction(ctx context.Context, actor models.User, messageID int64, emoji string) (models.MessageView, error) {
	args := m.Called(ctx, actor, messageID, emoji)
	return args.Get(0).(models.MessageView), args.Error(1)
}

func (m *MessageHandlerMock) MarkSeen(ctx context.Context, actor models.User, roomID, lastMessageID int64) error {
	args := m.Called(ctx, actor, roomID, lastMessageID)
	return args.Error(0)
}
