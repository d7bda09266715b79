package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"keeper/internal/models"
)

// ReactionRepository persists emoji reactions.
type ReactionRepository interface {
	Find(ctx context.Context, userID, messageID int64, emoji string) (models.Reaction, error)
	Create(ctx context.Context, userID, messageID int64, emoji string) error
	Delete(ctx context.Context, id int64) error
	ListByMessages(ctx context.Context, messageIDs []int64) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	q sqlx.ExtContext
}

func (r *ReactionRepo) Find(ctx context.Context, userID, messageID int64, emoji string) (models.Reaction, error) {
	var reaction models.Reaction
	err := sqlx.GetContext(ctx, r.q, &reaction,
		`SELECT id, message_id, user_id, emoji, created_at FROM reactions WHERE user_id=$1 AND message_id=$2 AND emoji=$3`,
		userID, messageID, emoji)
	return reaction, translate(err, "reaction")
}

// Create relies on the (user, message, emoji) unique key so racing inserts collapse into one row.
func (r *ReactionRepo) Create(ctx context.Context, userID, messageID int64, emoji string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO reactions (user_id, message_id, emoji) VALUES ($1, $2, $3) ON CONFLICT (user_id, message_id, emoji) DO NOTHING`,
		userID, messageID, emoji)
	return err
}

func (r *ReactionRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM reactions WHERE id=$1`, id)
	return err
}

func (r *ReactionRepo) ListByMessages(ctx context.Context, messageIDs []int64) ([]models.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []models.Reaction
	err := sqlx.SelectContext(ctx, r.q, &reactions,
		`SELECT id, message_id, user_id, emoji, created_at FROM reactions WHERE message_id = ANY($1) ORDER BY id`,
		pq.Array(messageIDs))
	return reactions, err
}
