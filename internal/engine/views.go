package engine

import (
	"context"

	"keeper/internal/models"
	"keeper/internal/repositories"
)

// messageViews resolves senders, replies, reactions and receipts for msgs, keeping their order.
func messageViews(ctx context.Context, tx repositories.Tx, msgs []models.Message) ([]models.MessageView, error) {
	views := make([]models.MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return views, nil
	}

	ids := make([]int64, 0, len(msgs))
	var replyIDs []int64
	userIDs := map[int64]struct{}{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
		userIDs[m.SenderID] = struct{}{}
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}

	replyList, err := tx.Messages().ListByIDs(ctx, replyIDs)
	if err != nil {
		return nil, err
	}
	replies := make(map[int64]models.Message, len(replyList))
	for _, r := range replyList {
		replies[r.ID] = r
		userIDs[r.SenderID] = struct{}{}
	}

	reactions, err := tx.Reactions().ListByMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	receipts, err := tx.Receipts().ListByMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range reactions {
		userIDs[r.UserID] = struct{}{}
	}
	for _, r := range receipts {
		userIDs[r.UserID] = struct{}{}
	}

	users, err := usersByID(ctx, tx, userIDs)
	if err != nil {
		return nil, err
	}

	byMessage := make(map[int64][]models.ReactionView)
	for _, r := range reactions {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], models.ReactionView{Emoji: r.Emoji, Username: users[r.UserID].Username})
	}
	seenBy := make(map[int64][]string)
	for _, r := range receipts {
		seenBy[r.MessageID] = append(seenBy[r.MessageID], users[r.UserID].Username)
	}

	for _, m := range msgs {
		sender := users[m.SenderID]
		view := models.MessageView{
			ID:                     m.ID,
			RoomID:                 m.RoomID,
			Content:                m.Content,
			SenderUsername:         sender.Username,
			SenderProfilePicture:   sender.ProfilePicture,
			Reactions:              byMessage[m.ID],
			Edited:                 m.Edited,
			Pinned:                 m.Pinned,
			LinkPreviewURL:         m.LinkPreviewURL,
			LinkPreviewTitle:       m.LinkPreviewTitle,
			LinkPreviewDescription: m.LinkPreviewDescription,
			LinkPreviewImage:       m.LinkPreviewImage,
			SeenBy:                 seenBy[m.ID],
			Timestamp:              m.CreatedAt,
		}
		if view.Reactions == nil {
			view.Reactions = []models.ReactionView{}
		}
		if view.SeenBy == nil {
			view.SeenBy = []string{}
		}
		if m.ReplyToID != nil {
			if target, ok := replies[*m.ReplyToID]; ok {
				view.RepliedTo = replySummary(target, users[target.SenderID])
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func messageView(ctx context.Context, tx repositories.Tx, msg models.Message) (models.MessageView, error) {
	views, err := messageViews(ctx, tx, []models.Message{msg})
	if err != nil {
		return models.MessageView{}, err
	}
	return views[0], nil
}

func replySummary(target models.Message, sender models.User) *models.ReplySummary {
	return &models.ReplySummary{ID: target.ID, Content: target.Content, SenderUsername: sender.Username}
}

func usersByID(ctx context.Context, tx repositories.Tx, set map[int64]struct{}) (map[int64]models.User, error) {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	list, err := tx.Users().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	users := make(map[int64]models.User, len(list))
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}

func roomView(room models.ChatRoom, participants []models.User) models.RoomView {
	view := models.RoomView{
		ID:           room.ID,
		Name:         room.Name,
		InviteCode:   room.InviteCode,
		Participants: make([]models.UserSummary, 0, len(participants)),
		CreatedAt:    room.CreatedAt,
		IsPrivate:    room.IsPrivate,
	}
	for _, p := range participants {
		summary := p.Summary()
		view.Participants = append(view.Participants, summary)
		if room.IsOwner(p.ID) {
			owner := summary
			view.Owner = &owner
		}
	}
	return view
}

func loadRoomView(ctx context.Context, tx repositories.Tx, room models.ChatRoom) (models.RoomView, error) {
	ids, err := tx.Rooms().ParticipantIDs(ctx, room.ID)
	if err != nil {
		return models.RoomView{}, err
	}
	participants, err := tx.Users().ListByIDs(ctx, ids)
	if err != nil {
		return models.RoomView{}, err
	}
	return roomView(room, participants), nil
}
