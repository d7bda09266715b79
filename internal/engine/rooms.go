package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"keeper/internal/apperrors"
	"keeper/internal/events"
	"keeper/internal/models"
	"keeper/internal/repositories"
)

const maxRoomNameLength = 100

// RoomService manages group rooms joined through invite codes.
type RoomService struct {
	store  repositories.Store
	events broadcaster
	log    *zap.Logger
}

func NewRoomService(store repositories.Store, bus EventBus, log *zap.Logger) *RoomService {
	return &RoomService{store: store, events: broadcaster{bus: bus, log: log}, log: log}
}

// CreateGroup creates a public room owned by the actor.
func (s *RoomService) CreateGroup(ctx context.Context, actor models.User, name string) (models.RoomView, error) {
	name, err := roomName(name)
	if err != nil {
		return models.RoomView{}, err
	}

	var view models.RoomView
	err = s.store.WithinTx(ctx, func(tx repositories.Tx) error {
		room, err := tx.Rooms().CreateGroup(ctx, name, uuid.NewString(), actor.ID)
		if err != nil {
			return err
		}
		view = roomView(room, []models.User{actor})
		return nil
	})
	if err != nil {
		return models.RoomView{}, err
	}
	s.log.Info("group room created", zap.Int64("room_id", view.ID), zap.String("owner", actor.Username))
	return view, nil
}

// JoinGroup adds the actor to the group behind inviteCode. Joining twice is a no-op.
func (s *RoomService) JoinGroup(ctx context.Context, actor models.User, inviteCode string) (models.RoomView, error) {
	var (
		view   models.RoomView
		joined bool
	)
	err := s.store.WithinTx(ctx, func(tx repositories.Tx) error {
		room, err := tx.Rooms().GetByInviteCode(ctx, inviteCode)
		if err != nil {
			return err
		}
		if room.IsPrivate {
			return apperrors.Forbidden("cannot join a private room with an invite code")
		}
		member, err := tx.Rooms().IsParticipant(ctx, room.ID, actor.ID)
		if err != nil {
			return err
		}
		if !member {
			if err := tx.Rooms().AddParticipant(ctx, room.ID, actor.ID); err != nil {
				return err
			}
			joined = true
		}
		view, err = loadRoomView(ctx, tx, room)
		return err
	})
	if err != nil {
		return models.RoomView{}, err
	}

	if joined {
		summary := actor.Summary()
		s.events.publish(ctx, events.RoomTopic(view.ID), models.ChatEvent{Type: models.EventUserJoined, RoomID: view.ID, UserActionParticipant: &summary})
	}
	return view, nil
}

// ListGroups returns the group rooms the actor participates in, newest first.
func (s *RoomService) ListGroups(ctx context.Context, actor models.User, page, size int) ([]models.RoomView, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}
	rooms, err := s.store.Rooms().ListGroups(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]models.RoomView, 0, len(rooms))
	for _, room := range rooms {
		view, err := loadRoomView(ctx, s.store, room)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// RenameGroup changes the name of a group the actor owns.
func (s *RoomService) RenameGroup(ctx context.Context, actor models.User, roomID int64, name string) (models.RoomView, error) {
	name, err := roomName(name)
	if err != nil {
		return models.RoomView{}, err
	}

	var view models.RoomView
	err = s.store.WithinTx(ctx, func(tx repositories.Tx) error {
		if _, err := ownedGroup(ctx, tx, actor, roomID); err != nil {
			return err
		}
		room, err := tx.Rooms().Rename(ctx, roomID, name)
		if err != nil {
			return err
		}
		view, err = loadRoomView(ctx, tx, room)
		return err
	})
	if err != nil {
		return models.RoomView{}, err
	}

	s.events.publish(ctx, events.RoomTopic(view.ID), models.ChatEvent{Type: models.EventRoomUpdated, RoomID: view.ID, Room: &view})
	return view, nil
}

// DeleteGroup removes a group the actor owns together with its messages.
func (s *RoomService) DeleteGroup(ctx context.Context, actor models.User, roomID int64) error {
	err := s.store.WithinTx(ctx, func(tx repositories.Tx) error {
		if _, err := ownedGroup(ctx, tx, actor, roomID); err != nil {
			return err
		}
		return tx.Rooms().Delete(ctx, roomID)
	})
	if err != nil {
		return err
	}

	s.log.Info("group room deleted", zap.Int64("room_id", roomID), zap.String("owner", actor.Username))
	s.events.publish(ctx, events.RoomTopic(roomID), models.ChatEvent{Type: models.EventRoomDeleted, RoomID: roomID})
	return nil
}

// KickParticipant removes a participant from a group the actor owns. The owner cannot be kicked.
func (s *RoomService) KickParticipant(ctx context.Context, actor models.User, roomID, userID int64) error {
	var kicked models.User
	err := s.store.WithinTx(ctx, func(tx repositories.Tx) error {
		if _, err := ownedGroup(ctx, tx, actor, roomID); err != nil {
			return err
		}
		var err error
		if kicked, err = tx.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		if kicked.ID == actor.ID {
			return apperrors.Forbidden("the owner cannot be kicked from their own room")
		}
		removed, err := tx.Rooms().RemoveParticipant(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return apperrors.NotFound("user %d is not a participant of room %d", userID, roomID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("participant kicked", zap.Int64("room_id", roomID), zap.String("username", kicked.Username))
	summary := kicked.Summary()
	s.events.publish(ctx, events.RoomTopic(roomID), models.ChatEvent{Type: models.EventUserKicked, RoomID: roomID, UserActionParticipant: &summary})
	return nil
}

// CanAccess reports whether the user may subscribe to the room's live topic.
func (s *RoomService) CanAccess(ctx context.Context, userID, roomID int64) (bool, error) {
	return s.store.Rooms().IsParticipant(ctx, roomID, userID)
}

func roomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxRoomNameLength {
		return "", apperrors.InvalidArgument("room name must be 1 to %d characters", maxRoomNameLength)
	}
	return name, nil
}

// ownedGroup loads a room the actor may administer: a group room they own.
func ownedGroup(ctx context.Context, tx repositories.Tx, actor models.User, roomID int64) (models.ChatRoom, error) {
	room, err := tx.Rooms().Get(ctx, roomID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if room.IsPrivate {
		return models.ChatRoom{}, apperrors.Forbidden("private rooms cannot be administered")
	}
	if !room.IsOwner(actor.ID) {
		return models.ChatRoom{}, apperrors.Forbidden("only the owner can administer room %d", roomID)
	}
	return room, nil
}
