package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"keeper/internal/models"
)

const roomColumns = `id, name, invite_code, owner_id, is_private, created_at`

// RoomRepository persists rooms and their participants.
type RoomRepository interface {
	Get(ctx context.Context, id int64) (models.ChatRoom, error)
	GetByInviteCode(ctx context.Context, code string) (models.ChatRoom, error)
	ParticipantIDs(ctx context.Context, roomID int64) ([]int64, error)
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)
	AddParticipant(ctx context.Context, roomID, userID int64) error
	CreateGroup(ctx context.Context, name, inviteCode string, ownerID int64) (models.ChatRoom, error)
	FindOrCreateDM(ctx context.Context, userA, userB int64, name, inviteCode string) (models.ChatRoom, bool, error)
	ListVisibleDMs(ctx context.Context, userID int64, limit, offset int) ([]models.ChatRoom, error)
	ListGroups(ctx context.Context, userID int64, limit, offset int) ([]models.ChatRoom, error)
	Rename(ctx context.Context, roomID int64, name string) (models.ChatRoom, error)
	Delete(ctx context.Context, roomID int64) error
	RemoveParticipant(ctx context.Context, roomID, userID int64) (bool, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	q sqlx.ExtContext
}

func (r *RoomRepo) Get(ctx context.Context, id int64) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := sqlx.GetContext(ctx, r.q, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, id)
	return room, translate(err, "room")
}

func (r *RoomRepo) GetByInviteCode(ctx context.Context, code string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := sqlx.GetContext(ctx, r.q, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE invite_code=$1`, code)
	return room, translate(err, "room")
}

func (r *RoomRepo) ParticipantIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, `SELECT user_id FROM chatroom_participants WHERE room_id=$1 ORDER BY user_id`, roomID)
	return ids, err
}

func (r *RoomRepo) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS(SELECT 1 FROM chatroom_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// AddParticipant is a no-op when the user already participates.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID, userID int64) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO chatroom_participants (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roomID, userID)
	return err
}

// CreateGroup creates a public room owned by ownerID, with the owner as first participant.
func (r *RoomRepo) CreateGroup(ctx context.Context, name, inviteCode string, ownerID int64) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := sqlx.GetContext(ctx, r.q, &room,
		`INSERT INTO chat_rooms (name, invite_code, owner_id, is_private) VALUES ($1, $2, $3, FALSE) RETURNING `+roomColumns,
		name, inviteCode, ownerID)
	if err != nil {
		return models.ChatRoom{}, translate(err, "room")
	}
	if err := r.AddParticipant(ctx, room.ID, ownerID); err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

// FindOrCreateDM returns the private room of the unordered pair, creating it when absent.
// The boolean reports whether this call created the room.
func (r *RoomRepo) FindOrCreateDM(ctx context.Context, userA, userB int64, name, inviteCode string) (models.ChatRoom, bool, error) {
	low, high := models.DMKey(userA, userB)

	room, err := r.findDM(ctx, low, high)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, false, err
	}

	err = sqlx.GetContext(ctx, r.q, &room,
		`INSERT INTO chat_rooms (name, invite_code, is_private, dm_user_low, dm_user_high)
        VALUES ($1, $2, TRUE, $3, $4)
        ON CONFLICT (dm_user_low, dm_user_high) DO NOTHING
        RETURNING `+roomColumns,
		name, inviteCode, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		// a concurrent opener won the insert
		room, err = r.findDM(ctx, low, high)
		return room, false, translate(err, "room")
	}
	if err != nil {
		return models.ChatRoom{}, false, translate(err, "room")
	}

	for _, id := range []int64{low, high} {
		if err := r.AddParticipant(ctx, room.ID, id); err != nil {
			return models.ChatRoom{}, false, err
		}
	}
	return room, true, nil
}

func (r *RoomRepo) findDM(ctx context.Context, low, high int64) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := sqlx.GetContext(ctx, r.q, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE dm_user_low=$1 AND dm_user_high=$2`, low, high)
	return room, err
}

// ListVisibleDMs returns the user's private rooms that carry no hidden marker, newest first.
func (r *RoomRepo) ListVisibleDMs(ctx context.Context, userID int64, limit, offset int) ([]models.ChatRoom, error) {
	query := `SELECT r.id, r.name, r.invite_code, r.owner_id, r.is_private, r.created_at
        FROM chat_rooms r
        INNER JOIN chatroom_participants p ON p.room_id = r.id
        WHERE p.user_id=$1
        AND r.is_private = TRUE
        AND NOT EXISTS (SELECT 1 FROM hidden_chat_rooms h WHERE h.room_id = r.id AND h.user_id = $1)
        ORDER BY r.id DESC
        LIMIT $2 OFFSET $3`
	var rooms []models.ChatRoom
	err := sqlx.SelectContext(ctx, r.q, &rooms, query, userID, limit, offset)
	return rooms, err
}

// ListGroups returns the public rooms the user participates in, newest first.
func (r *RoomRepo) ListGroups(ctx context.Context, userID int64, limit, offset int) ([]models.ChatRoom, error) {
	query := `SELECT r.id, r.name, r.invite_code, r.owner_id, r.is_private, r.created_at
        FROM chat_rooms r
        INNER JOIN chatroom_participants p ON p.room_id = r.id
        WHERE p.user_id=$1 AND r.is_private = FALSE
        ORDER BY r.id DESC
        LIMIT $2 OFFSET $3`
	var rooms []models.ChatRoom
	err := sqlx.SelectContext(ctx, r.q, &rooms, query, userID, limit, offset)
	return rooms, err
}

func (r *RoomRepo) Rename(ctx context.Context, roomID int64, name string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := sqlx.GetContext(ctx, r.q, &room, `UPDATE chat_rooms SET name=$1 WHERE id=$2 RETURNING `+roomColumns, name, roomID)
	return room, translate(err, "room")
}

// Delete removes the room. Participants, messages, reactions, receipts and hidden markers cascade.
func (r *RoomRepo) Delete(ctx context.Context, roomID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	return requireAffected(res, "room")
}

// RemoveParticipant reports whether the user was a participant.
func (r *RoomRepo) RemoveParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM chatroom_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
