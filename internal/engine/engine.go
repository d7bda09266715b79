// Package engine holds the command-processing core: message lifecycle, friendships,
// private room visibility and group rooms. Every operation commits its store changes
// before anything is published.
package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"keeper/internal/apperrors"
	"keeper/internal/events"
	"keeper/internal/models"
	"keeper/internal/observability"
	"keeper/internal/repositories"
)

const maxPageSize = 100

// EventBus publishes payloads to live subscribers of a topic.
type EventBus interface {
	Publish(ctx context.Context, topic, event string, payload any) error
}

type PresenceRegistry interface {
	IsOnline(ctx context.Context, username string) (bool, error)
}

// NotificationQueue accepts push jobs without waiting for delivery.
type NotificationQueue interface {
	Enqueue(job models.NotificationJob) error
}

type broadcaster struct {
	bus EventBus
	log *zap.Logger
}

// publish is fire-and-forget: failures are counted and logged, never returned.
func (b broadcaster) publish(ctx context.Context, topic string, ev models.ChatEvent) {
	if err := b.bus.Publish(ctx, topic, events.EventName, ev); err != nil {
		observability.IncEventPublishError()
		b.log.Error("event publish failed", zap.String("topic", topic), zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	observability.IncEventPublished(string(ev.Type))
}

func requireParticipant(ctx context.Context, rooms repositories.RoomRepository, roomID, userID int64) error {
	ok, err := rooms.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("user is not a participant of room %d", roomID)
	}
	return nil
}

func pageBounds(page, size int) (limit, offset int, err error) {
	if page < 0 || size <= 0 {
		return 0, 0, apperrors.InvalidArgument("invalid page %d size %d", page, size)
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, page * size, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
