package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"keeper/internal/models"
)

const messageColumns = `id, room_id, sender_id, content, reply_to_id, edited, is_pinned,
        link_preview_url, link_preview_title, link_preview_description, link_preview_image, created_at`

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	Create(ctx context.Context, roomID, senderID int64, content string, replyToID *int64) (models.Message, error)
	Get(ctx context.Context, id int64) (models.Message, error)
	GetForUpdate(ctx context.Context, id int64) (models.Message, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Message, error)
	ListByRoom(ctx context.Context, roomID int64, limit, offset int) ([]models.Message, error)
	ListPinned(ctx context.Context, roomID int64) ([]models.Message, error)
	IDsUpTo(ctx context.Context, roomID, lastID int64) ([]int64, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	SetPinned(ctx context.Context, id int64, pinned bool) error
	UpdateLinkPreview(ctx context.Context, id int64, preview models.LinkPreview) error
	Delete(ctx context.Context, id int64) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	q sqlx.ExtContext
}

func (r *MessageRepo) Create(ctx context.Context, roomID, senderID int64, content string, replyToID *int64) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.q, &msg,
		`INSERT INTO messages (room_id, sender_id, content, reply_to_id) VALUES ($1, $2, $3, $4) RETURNING `+messageColumns,
		roomID, senderID, content, replyToID)
	return msg, err
}

func (r *MessageRepo) Get(ctx context.Context, id int64) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.q, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	return msg, translate(err, "message")
}

// GetForUpdate locks the message row until the surrounding transaction ends.
func (r *MessageRepo) GetForUpdate(ctx context.Context, id int64) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.q, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, id)
	return msg, translate(err, "message")
}

func (r *MessageRepo) ListByIDs(ctx context.Context, ids []int64) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []models.Message
	err := sqlx.SelectContext(ctx, r.q, &msgs, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(ids))
	return msgs, err
}

// ListByRoom returns a page of the room's messages, newest first.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID int64, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := sqlx.SelectContext(ctx, r.q, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		roomID, limit, offset)
	return msgs, err
}

func (r *MessageRepo) ListPinned(ctx context.Context, roomID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := sqlx.SelectContext(ctx, r.q, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 AND is_pinned = TRUE ORDER BY id DESC`, roomID)
	return msgs, err
}

// IDsUpTo lists the ids of the room's messages at or before lastID.
func (r *MessageRepo) IDsUpTo(ctx context.Context, roomID, lastID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, `SELECT id FROM messages WHERE room_id=$1 AND id <= $2 ORDER BY id`, roomID, lastID)
	return ids, err
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE messages SET content=$1, edited=TRUE WHERE id=$2`, content, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "message")
}

func (r *MessageRepo) SetPinned(ctx context.Context, id int64, pinned bool) error {
	res, err := r.q.ExecContext(ctx, `UPDATE messages SET is_pinned=$1 WHERE id=$2`, pinned, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "message")
}

func (r *MessageRepo) UpdateLinkPreview(ctx context.Context, id int64, preview models.LinkPreview) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE messages SET link_preview_url=$1, link_preview_title=$2, link_preview_description=$3, link_preview_image=$4 WHERE id=$5`,
		preview.URL, preview.Title, preview.Description, preview.Image, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "message")
}

// Delete removes the message. Reactions and receipts cascade.
func (r *MessageRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "message")
}
