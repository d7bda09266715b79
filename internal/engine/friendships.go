package engine

import (
	"context"

	"go.uber.org/zap"

	"keeper/internal/apperrors"
	"keeper/internal/events"
	"keeper/internal/models"
	"keeper/internal/repositories"
)

// FriendshipEngine runs the friend request state machine: PENDING then ACCEPTED, or deleted.
type FriendshipEngine struct {
	store  repositories.Store
	events broadcaster
	log    *zap.Logger
}

func NewFriendshipEngine(store repositories.Store, bus EventBus, log *zap.Logger) *FriendshipEngine {
	return &FriendshipEngine{store: store, events: broadcaster{bus: bus, log: log}, log: log}
}

// SendRequest creates a pending request unless the pair already has a relationship of any status.
func (f *FriendshipEngine) SendRequest(ctx context.Context, requesterUsername, addresseePublicID string) error {
	var requester, addressee models.User
	err := f.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var err error
		if requester, err = tx.Users().GetByUsername(ctx, requesterUsername); err != nil {
			return err
		}
		if addressee, err = tx.Users().GetByPublicID(ctx, addresseePublicID); err != nil {
			return err
		}
		if requester.ID == addressee.ID {
			return apperrors.InvalidArgument("cannot send a friend request to yourself")
		}

		_, err = tx.Friendships().FindBetween(ctx, requester.ID, addressee.ID)
		if err == nil {
			return apperrors.Conflict("a friendship or pending request already exists")
		}
		if !isNotFound(err) {
			return err
		}
		_, err = tx.Friendships().Create(ctx, requester.ID, addressee.ID)
		return err
	})
	if err != nil {
		return err
	}

	f.notify(ctx, addressee.Username, models.EventFriendRequestReceived, requester)
	return nil
}

// Accept turns the pending request sent by requesterUsername into a friendship.
func (f *FriendshipEngine) Accept(ctx context.Context, currentUsername, requesterUsername string) error {
	var current models.User
	err := f.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var (
			fr  models.Friendship
			err error
		)
		current, fr, err = f.incoming(ctx, tx, currentUsername, requesterUsername)
		if err != nil {
			return err
		}
		return tx.Friendships().UpdateStatus(ctx, fr.ID, models.FriendshipAccepted)
	})
	if err != nil {
		return err
	}

	f.notify(ctx, requesterUsername, models.EventFriendRequestAccepted, current)
	return nil
}

// Decline deletes an incoming pending request without notifying the requester.
func (f *FriendshipEngine) Decline(ctx context.Context, currentUsername, requesterUsername string) error {
	return f.store.WithinTx(ctx, func(tx repositories.Tx) error {
		_, fr, err := f.incoming(ctx, tx, currentUsername, requesterUsername)
		if err != nil {
			return err
		}
		return tx.Friendships().Delete(ctx, fr.ID)
	})
}

// Cancel withdraws an outgoing pending request without notifying the addressee.
func (f *FriendshipEngine) Cancel(ctx context.Context, requesterUsername, addresseeUsername string) error {
	return f.store.WithinTx(ctx, func(tx repositories.Tx) error {
		requester, err := tx.Users().GetByUsername(ctx, requesterUsername)
		if err != nil {
			return err
		}
		addressee, err := tx.Users().GetByUsername(ctx, addresseeUsername)
		if err != nil {
			return err
		}
		fr, err := tx.Friendships().FindDirected(ctx, requester.ID, addressee.ID, models.FriendshipPending)
		if err != nil {
			return err
		}
		return tx.Friendships().Delete(ctx, fr.ID)
	})
}

// Remove ends an accepted friendship and tells the former friend.
func (f *FriendshipEngine) Remove(ctx context.Context, currentUsername, friendUsername string) error {
	var current models.User
	err := f.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var err error
		if current, err = tx.Users().GetByUsername(ctx, currentUsername); err != nil {
			return err
		}
		friend, err := tx.Users().GetByUsername(ctx, friendUsername)
		if err != nil {
			return err
		}
		fr, err := tx.Friendships().FindBetween(ctx, current.ID, friend.ID)
		if err != nil {
			return err
		}
		if fr.Status != models.FriendshipAccepted {
			return apperrors.NotFound("friendship not found")
		}
		return tx.Friendships().Delete(ctx, fr.ID)
	})
	if err != nil {
		return err
	}

	f.notify(ctx, friendUsername, models.EventFriendRemoved, current)
	return nil
}

func (f *FriendshipEngine) ListFriends(ctx context.Context, username string) ([]models.UserSummary, error) {
	user, err := f.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	rows, err := f.store.Friendships().ListByStatus(ctx, user.ID, models.FriendshipAccepted)
	if err != nil {
		return nil, err
	}
	others, err := f.counterparts(ctx, user.ID, rows)
	if err != nil {
		return nil, err
	}

	friends := make([]models.UserSummary, 0, len(rows))
	for _, fr := range rows {
		if u, ok := others[fr.Other(user.ID)]; ok {
			friends = append(friends, u.Summary())
		}
	}
	return friends, nil
}

// ListPending returns pending requests, incoming first, tagged relative to the caller.
func (f *FriendshipEngine) ListPending(ctx context.Context, username string) ([]models.PendingRequest, error) {
	user, err := f.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	rows, err := f.store.Friendships().ListByStatus(ctx, user.ID, models.FriendshipPending)
	if err != nil {
		return nil, err
	}
	others, err := f.counterparts(ctx, user.ID, rows)
	if err != nil {
		return nil, err
	}

	var incoming, outgoing []models.PendingRequest
	for _, fr := range rows {
		u, ok := others[fr.Other(user.ID)]
		if !ok {
			continue
		}
		if fr.AddresseeID == user.ID {
			incoming = append(incoming, models.PendingRequest{User: u.Summary(), Direction: models.DirectionIncoming})
		} else {
			outgoing = append(outgoing, models.PendingRequest{User: u.Summary(), Direction: models.DirectionOutgoing})
		}
	}
	return append(append(make([]models.PendingRequest, 0, len(rows)), incoming...), outgoing...), nil
}

// incoming finds the pending request from requesterUsername addressed to currentUsername.
func (f *FriendshipEngine) incoming(ctx context.Context, tx repositories.Tx, currentUsername, requesterUsername string) (models.User, models.Friendship, error) {
	current, err := tx.Users().GetByUsername(ctx, currentUsername)
	if err != nil {
		return models.User{}, models.Friendship{}, err
	}
	requester, err := tx.Users().GetByUsername(ctx, requesterUsername)
	if err != nil {
		return models.User{}, models.Friendship{}, err
	}
	fr, err := tx.Friendships().FindDirected(ctx, requester.ID, current.ID, models.FriendshipPending)
	if isNotFound(err) {
		return models.User{}, models.Friendship{}, apperrors.NotFound("pending friend request not found")
	}
	if err != nil {
		return models.User{}, models.Friendship{}, err
	}
	return current, fr, nil
}

func (f *FriendshipEngine) counterparts(ctx context.Context, userID int64, rows []models.Friendship) (map[int64]models.User, error) {
	ids := make(map[int64]struct{}, len(rows))
	for _, fr := range rows {
		ids[fr.Other(userID)] = struct{}{}
	}
	return usersByID(ctx, f.store, ids)
}

func (f *FriendshipEngine) notify(ctx context.Context, username string, eventType models.EventType, actor models.User) {
	summary := actor.Summary()
	f.events.publish(ctx, events.UserTopic(username), models.ChatEvent{Type: eventType, UserActionParticipant: &summary})
}
