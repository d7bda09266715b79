package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"keeper/internal/models"
)

type PresenceMock struct {
	mock.Mock
}

func (m *PresenceMock) IsOnline(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

type NotificationQueueMock struct {
	mock.Mock
}

func (m *NotificationQueueMock) Enqueue(job models.NotificationJob) error {
	args := m.Called(job)
	return args.Error(0)
}

type EventBusMock struct {
	mock.Mock
}

func (m *EventBusMock) Publish(ctx context.Context, topic, event string, payload any) error {
	args := m.Called(ctx, topic, event, payload)
	return args.Error(0)
}

func (m *PresenceMock) MarkOnline(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *PresenceMock) MarkOffline(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

// PublisherMock stands in for the broker publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.Called(ctx, routingKey, payload).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}
