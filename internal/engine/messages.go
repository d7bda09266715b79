package engine

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"keeper/internal/apperrors"
	"keeper/internal/events"
	"keeper/internal/models"
	"keeper/internal/repositories"
)

const maxEmojiLength = 32

// MessageEngine validates, persists and fans out the message lifecycle.
type MessageEngine struct {
	store      repositories.Store
	visibility *VisibilityManager
	presence   PresenceRegistry
	notifier   NotificationQueue
	events     broadcaster
	log        *zap.Logger
}

func NewMessageEngine(store repositories.Store, visibility *VisibilityManager, presence PresenceRegistry, notifier NotificationQueue, bus EventBus, log *zap.Logger) *MessageEngine {
	return &MessageEngine{
		store:      store,
		visibility: visibility,
		presence:   presence,
		notifier:   notifier,
		events:     broadcaster{bus: bus, log: log},
		log:        log,
	}
}

// SendMessage stores a message and broadcasts it to the room.
// Absent or oversize content is dropped with a warning and yields (nil, nil).
func (e *MessageEngine) SendMessage(ctx context.Context, actor models.User, roomID int64, content *string, replyToID *int64) (*models.Message, error) {
	if content == nil || utf8.RuneCountInString(*content) > models.MaxContentLength {
		e.log.Warn("dropping message with missing or oversize content",
			zap.String("username", actor.Username), zap.Int64("room_id", roomID))
		return nil, nil
	}

	var (
		msg          models.Message
		room         models.ChatRoom
		participants []models.User
		reply        *models.ReplySummary
		restored     = map[int64]bool{}
	)
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var err error
		room, err = tx.Rooms().Get(ctx, roomID)
		if err != nil {
			return err
		}
		ids, err := tx.Rooms().ParticipantIDs(ctx, roomID)
		if err != nil {
			return err
		}
		if !containsID(ids, actor.ID) {
			return apperrors.Forbidden("user is not a participant of room %d", roomID)
		}

		var replyRef *int64
		if replyToID != nil {
			target, err := tx.Messages().Get(ctx, *replyToID)
			switch {
			case isNotFound(err):
				// dangling reply ids are tolerated
			case err != nil:
				return err
			default:
				sender, err := tx.Users().GetByID(ctx, target.SenderID)
				if err != nil {
					return err
				}
				replyRef = &target.ID
				reply = replySummary(target, sender)
			}
		}

		msg, err = tx.Messages().Create(ctx, roomID, actor.ID, *content, replyRef)
		if err != nil {
			return err
		}
		participants, err = tx.Users().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}

		if room.IsPrivate {
			for _, id := range ids {
				if id == actor.ID {
					continue
				}
				removed, err := e.visibility.unhide(ctx, tx, roomID, id)
				if err != nil {
					return err
				}
				if removed {
					restored[id] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(restored) > 0 {
		view := roomView(room, participants)
		for _, p := range participants {
			if restored[p.ID] {
				e.visibility.announceRestored(ctx, view, p.Username)
			}
		}
	}

	ts := msg.CreatedAt
	e.events.publish(ctx, events.RoomTopic(roomID), models.ChatEvent{
		Type:                 models.EventChat,
		ID:                   msg.ID,
		RoomID:               roomID,
		Content:              msg.Content,
		SenderUsername:       actor.Username,
		SenderProfilePicture: actor.ProfilePicture,
		RepliedTo:            reply,
		Timestamp:            &ts,
		Edited:               false,
	})

	e.routeNotifications(ctx, room, msg, actor, participants, restored)
	return &msg, nil
}

// routeNotifications queues a push for each offline recipient with a token whose private room
// was hidden when the message arrived. hidden holds the markers cleared by this send.
func (e *MessageEngine) routeNotifications(ctx context.Context, room models.ChatRoom, msg models.Message, sender models.User, participants []models.User, hidden map[int64]bool) {
	if !room.IsPrivate {
		return
	}
	for _, p := range participants {
		if p.ID == sender.ID || p.PushToken == "" || !hidden[p.ID] {
			continue
		}
		online, err := e.presence.IsOnline(ctx, p.Username)
		if err != nil {
			e.log.Warn("presence lookup failed, skipping push", zap.String("username", p.Username), zap.Error(err))
			continue
		}
		if online {
			continue
		}

		job := models.NotificationJob{
			RecipientUsername: p.Username,
			SenderUsername:    sender.Username,
			MessageContent:    msg.Content,
			RoomID:            room.ID,
			PushToken:         p.PushToken,
		}
		if err := e.notifier.Enqueue(job); err != nil {
			e.log.Error("notification enqueue failed", zap.String("recipient", p.Username), zap.Int64("room_id", room.ID), zap.Error(err))
			continue
		}
		e.log.Info("notification queued for offline user in hidden dm", zap.String("recipient", p.Username), zap.Int64("room_id", room.ID))
	}
}

// EditMessage replaces the content of the actor's own message.
func (e *MessageEngine) EditMessage(ctx context.Context, actor models.User, messageID int64, content string) error {
	if content == "" || utf8.RuneCountInString(content) > models.MaxContentLength {
		return apperrors.InvalidArgument("message content must be 1 to %d characters", models.MaxContentLength)
	}

	var msg models.Message
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var err error
		msg, err = tx.Messages().Get(ctx, messageID)
		if err != nil {
			return err
		}
		if msg.SenderID != actor.ID {
			return apperrors.Forbidden("user not authorized to edit message %d", messageID)
		}
		return tx.Messages().UpdateContent(ctx, messageID, content)
	})
	if err != nil {
		return err
	}

	e.events.publish(ctx, events.RoomTopic(msg.RoomID), models.ChatEvent{
		Type:           models.EventEdit,
		ID:             msg.ID,
		RoomID:         msg.RoomID,
		Content:        content,
		SenderUsername: actor.Username,
		Edited:         true,
	})
	return nil
}

// DeleteMessage removes the actor's own message together with its reactions and receipts.
func (e *MessageEngine) DeleteMessage(ctx context.Context, actor models.User, messageID int64) error {
	var msg models.Message
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		var err error
		msg, err = tx.Messages().Get(ctx, messageID)
		if err != nil {
			return err
		}
		if msg.SenderID != actor.ID {
			return apperrors.Forbidden("user not authorized to delete message %d", messageID)
		}
		return tx.Messages().Delete(ctx, messageID)
	})
	if err != nil {
		return err
	}

	e.events.publish(ctx, events.RoomTopic(msg.RoomID), models.ChatEvent{Type: models.EventDelete, ID: msg.ID, RoomID: msg.RoomID})
	return nil
}

// TogglePin flips the pinned flag. Only the room owner may pin, so private rooms never allow it.
func (e *MessageEngine) TogglePin(ctx context.Context, actor models.User, messageID int64) (models.MessageView, error) {
	var view models.MessageView
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		msg, err := tx.Messages().GetForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		room, err := tx.Rooms().Get(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		if !room.IsOwner(actor.ID) {
			return apperrors.Forbidden("only the room owner can pin messages")
		}
		if err := tx.Messages().SetPinned(ctx, msg.ID, !msg.Pinned); err != nil {
			return err
		}
		msg.Pinned = !msg.Pinned
		view, err = messageView(ctx, tx, msg)
		return err
	})
	if err != nil {
		return models.MessageView{}, err
	}

	e.events.publish(ctx, events.RoomTopic(view.RoomID), models.ChatEvent{Type: models.EventPinUpdate, RoomID: view.RoomID, UpdatedMessage: &view})
	return view, nil
}

// ToggleReaction adds the actor's emoji to the message, or removes it when already present.
func (e *MessageEngine) ToggleReaction(ctx context.Context, actor models.User, messageID int64, emoji string) (models.MessageView, error) {
	if n := utf8.RuneCountInString(emoji); n == 0 || n > maxEmojiLength {
		return models.MessageView{}, apperrors.InvalidArgument("invalid emoji")
	}

	var view models.MessageView
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		// the row lock serialises toggles on the same message
		msg, err := tx.Messages().GetForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		if err := requireParticipant(ctx, tx.Rooms(), msg.RoomID, actor.ID); err != nil {
			return err
		}

		existing, err := tx.Reactions().Find(ctx, actor.ID, messageID, emoji)
		switch {
		case err == nil:
			err = tx.Reactions().Delete(ctx, existing.ID)
		case isNotFound(err):
			err = tx.Reactions().Create(ctx, actor.ID, messageID, emoji)
		}
		if err != nil {
			return err
		}
		view, err = messageView(ctx, tx, msg)
		return err
	})
	if err != nil {
		return models.MessageView{}, err
	}

	e.events.publish(ctx, events.RoomTopic(view.RoomID), models.ChatEvent{Type: models.EventReactionUpdate, ID: view.ID, RoomID: view.RoomID, UpdatedMessage: &view})
	return view, nil
}

// MarkSeen records receipts for every message up to lastMessageID the actor has not seen yet.
// Nothing is broadcast when no receipt was new.
func (e *MessageEngine) MarkSeen(ctx context.Context, actor models.User, roomID, lastMessageID int64) error {
	var inserted int64
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		if _, err := tx.Rooms().Get(ctx, roomID); err != nil {
			return err
		}
		if err := requireParticipant(ctx, tx.Rooms(), roomID, actor.ID); err != nil {
			return err
		}

		candidates, err := tx.Messages().IDsUpTo(ctx, roomID, lastMessageID)
		if err != nil {
			return err
		}
		seen, err := tx.Receipts().SeenMessageIDs(ctx, roomID, actor.ID)
		if err != nil {
			return err
		}
		seenSet := make(map[int64]struct{}, len(seen))
		for _, id := range seen {
			seenSet[id] = struct{}{}
		}
		var fresh []int64
		for _, id := range candidates {
			if _, ok := seenSet[id]; !ok {
				fresh = append(fresh, id)
			}
		}

		inserted, err = tx.Receipts().InsertBatch(ctx, actor.ID, fresh)
		return err
	})
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	e.events.publish(ctx, events.RoomTopic(roomID), models.ChatEvent{
		Type:           models.EventMessagesSeen,
		RoomID:         roomID,
		SenderUsername: actor.Username,
		LastMessageID:  lastMessageID,
	})
	return nil
}

// GetMessages returns a page of the room's messages, newest first.
func (e *MessageEngine) GetMessages(ctx context.Context, actor models.User, roomID int64, page, size int) ([]models.MessageView, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, e.store.Rooms(), roomID, actor.ID); err != nil {
		return nil, err
	}
	msgs, err := e.store.Messages().ListByRoom(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	return messageViews(ctx, e.store, msgs)
}

// GetPinned returns every pinned message of the room, newest first.
func (e *MessageEngine) GetPinned(ctx context.Context, actor models.User, roomID int64) ([]models.MessageView, error) {
	if err := requireParticipant(ctx, e.store.Rooms(), roomID, actor.ID); err != nil {
		return nil, err
	}
	msgs, err := e.store.Messages().ListPinned(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return messageViews(ctx, e.store, msgs)
}

// UpdateLinkPreview stores unfurled link metadata on a message and republishes it.
func (e *MessageEngine) UpdateLinkPreview(ctx context.Context, messageID int64, preview models.LinkPreview) (models.MessageView, error) {
	var view models.MessageView
	err := e.store.WithinTx(ctx, func(tx repositories.Tx) error {
		if err := tx.Messages().UpdateLinkPreview(ctx, messageID, preview); err != nil {
			return err
		}
		msg, err := tx.Messages().Get(ctx, messageID)
		if err != nil {
			return err
		}
		view, err = messageView(ctx, tx, msg)
		return err
	})
	if err != nil {
		return models.MessageView{}, err
	}

	e.events.publish(ctx, events.RoomTopic(view.RoomID), models.ChatEvent{Type: models.EventMessageUpdated, RoomID: view.RoomID, UpdatedMessage: &view})
	return view, nil
}
