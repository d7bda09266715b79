package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"keeper/internal/models"
)

// ReceiptRepository persists read receipts.
type ReceiptRepository interface {
	SeenMessageIDs(ctx context.Context, roomID, userID int64) ([]int64, error)
	InsertBatch(ctx context.Context, userID int64, messageIDs []int64) (int64, error)
	ListByMessages(ctx context.Context, messageIDs []int64) ([]models.ReadReceipt, error)
}

// ReceiptRepo is a sqlx implementation of ReceiptRepository.
type ReceiptRepo struct {
	q sqlx.ExtContext
}

// SeenMessageIDs lists the room's messages the user already has a receipt for.
func (r *ReceiptRepo) SeenMessageIDs(ctx context.Context, roomID, userID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids,
		`SELECT rr.message_id FROM message_read_receipts rr
        INNER JOIN messages m ON m.id = rr.message_id
        WHERE m.room_id=$1 AND rr.user_id=$2`,
		roomID, userID)
	return ids, err
}

// InsertBatch writes one receipt per message in a single statement and reports how many were new.
func (r *ReceiptRepo) InsertBatch(ctx context.Context, userID int64, messageIDs []int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO message_read_receipts (user_id, message_id)
        SELECT $1, unnest($2::bigint[])
        ON CONFLICT (user_id, message_id) DO NOTHING`,
		userID, pq.Array(messageIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ReceiptRepo) ListByMessages(ctx context.Context, messageIDs []int64) ([]models.ReadReceipt, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var receipts []models.ReadReceipt
	err := sqlx.SelectContext(ctx, r.q, &receipts,
		`SELECT id, message_id, user_id, read_at FROM message_read_receipts WHERE message_id = ANY($1) ORDER BY id`,
		pq.Array(messageIDs))
	return receipts, err
}
