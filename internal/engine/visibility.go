package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"keeper/internal/apperrors"
	"keeper/internal/events"
	"keeper/internal/models"
	"keeper/internal/repositories"
)

// VisibilityManager owns the per-user hidden state of private rooms.
type VisibilityManager struct {
	store  repositories.Store
	events broadcaster
	log    *zap.Logger
}

func NewVisibilityManager(store repositories.Store, bus EventBus, log *zap.Logger) *VisibilityManager {
	return &VisibilityManager{store: store, events: broadcaster{bus: bus, log: log}, log: log}
}

// Hide removes a private room from the actor's DM list until new activity restores it.
func (v *VisibilityManager) Hide(ctx context.Context, actor models.User, roomID int64) error {
	return v.store.WithinTx(ctx, func(tx repositories.Tx) error {
		room, err := tx.Rooms().Get(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.IsPrivate {
			return apperrors.Forbidden("only private rooms can be hidden")
		}
		if err := requireParticipant(ctx, tx.Rooms(), roomID, actor.ID); err != nil {
			return err
		}
		return tx.HiddenRooms().Create(ctx, actor.ID, roomID)
	})
}

// unhide clears one user's marker inside the caller's transaction and reports whether it existed.
// Concurrent callers race on the delete, so exactly one of them observes true.
func (v *VisibilityManager) unhide(ctx context.Context, tx repositories.Tx, roomID, userID int64) (bool, error) {
	return tx.HiddenRooms().Delete(ctx, userID, roomID)
}

// announceRestored tells a user their hidden conversation has resurfaced.
func (v *VisibilityManager) announceRestored(ctx context.Context, room models.RoomView, username string) {
	v.events.publish(ctx, events.UserTopic(username), models.ChatEvent{Type: models.EventDMChannelCreated, Room: &room})
	v.log.Info("dm room restored", zap.Int64("room_id", room.ID), zap.String("username", username))
}

// GetOrCreateDMChannel opens the private room between two accepted friends.
// A new room is announced to both users; opening an existing one only clears the opener's marker.
func (v *VisibilityManager) GetOrCreateDMChannel(ctx context.Context, actor models.User, otherUsername string) (models.RoomView, error) {
	var (
		view    models.RoomView
		created bool
		other   models.User
	)
	err := v.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var err error
		other, err = tx.Users().GetByUsername(ctx, otherUsername)
		if err != nil {
			return err
		}
		if other.ID == actor.ID {
			return apperrors.InvalidArgument("cannot open a direct message with yourself")
		}

		friendship, err := tx.Friendships().FindBetween(ctx, actor.ID, other.ID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err != nil || friendship.Status != models.FriendshipAccepted {
			return apperrors.Forbidden("users are not friends")
		}

		name := fmt.Sprintf("%s & %s", actor.Username, other.Username)
		room, isNew, err := tx.Rooms().FindOrCreateDM(ctx, actor.ID, other.ID, name, uuid.NewString())
		if err != nil {
			return err
		}
		created = isNew
		if !created {
			if _, err := v.unhide(ctx, tx, room.ID, actor.ID); err != nil {
				return err
			}
		}
		view, err = loadRoomView(ctx, tx, room)
		return err
	})
	if err != nil {
		return models.RoomView{}, err
	}

	if created {
		ev := models.ChatEvent{Type: models.EventDMChannelCreated, Room: &view}
		v.events.publish(ctx, events.UserTopic(actor.Username), ev)
		v.events.publish(ctx, events.UserTopic(other.Username), ev)
		v.log.Info("dm room created", zap.Int64("room_id", view.ID), zap.String("user1", actor.Username), zap.String("user2", other.Username))
	}
	return view, nil
}

// ListDirectMessages returns the actor's private rooms that are not hidden, newest first.
func (v *VisibilityManager) ListDirectMessages(ctx context.Context, actor models.User, page, size int) ([]models.RoomView, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}
	rooms, err := v.store.Rooms().ListVisibleDMs(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]models.RoomView, 0, len(rooms))
	for _, room := range rooms {
		view, err := loadRoomView(ctx, v.store, room)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
