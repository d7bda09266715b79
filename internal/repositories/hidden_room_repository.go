package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// HiddenRoomRepository persists per-user hidden markers on private rooms.
type HiddenRoomRepository interface {
	Exists(ctx context.Context, userID, roomID int64) (bool, error)
	Create(ctx context.Context, userID, roomID int64) error
	Delete(ctx context.Context, userID, roomID int64) (bool, error)
	HiddenUserIDs(ctx context.Context, roomID int64) ([]int64, error)
}

// HiddenRoomRepo is a sqlx implementation of HiddenRoomRepository.
type HiddenRoomRepo struct {
	q sqlx.ExtContext
}

func (r *HiddenRoomRepo) Exists(ctx context.Context, userID, roomID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS(SELECT 1 FROM hidden_chat_rooms WHERE user_id=$1 AND room_id=$2)`, userID, roomID)
	return exists, err
}

// Create is a no-op when the marker already exists.
func (r *HiddenRoomRepo) Create(ctx context.Context, userID, roomID int64) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO hidden_chat_rooms (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roomID)
	return err
}

// Delete removes the marker and reports whether one was present.
func (r *HiddenRoomRepo) Delete(ctx context.Context, userID, roomID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM hidden_chat_rooms WHERE user_id=$1 AND room_id=$2`, userID, roomID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HiddenUserIDs lists the users that currently hide the room.
func (r *HiddenRoomRepo) HiddenUserIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, `SELECT user_id FROM hidden_chat_rooms WHERE room_id=$1 ORDER BY user_id`, roomID)
	return ids, err
}
