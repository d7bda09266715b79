package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"keeper/internal/models"
)

const friendshipColumns = `id, requester_id, addressee_id, status, created_at`

// FriendshipRepository persists friend relationships.
type FriendshipRepository interface {
	FindBetween(ctx context.Context, a, b int64) (models.Friendship, error)
	FindDirected(ctx context.Context, requesterID, addresseeID int64, status models.FriendshipStatus) (models.Friendship, error)
	Create(ctx context.Context, requesterID, addresseeID int64) (models.Friendship, error)
	UpdateStatus(ctx context.Context, id int64, status models.FriendshipStatus) error
	Delete(ctx context.Context, id int64) error
	ListByStatus(ctx context.Context, userID int64, status models.FriendshipStatus) ([]models.Friendship, error)
}

// FriendshipRepo is a sqlx implementation of FriendshipRepository.
type FriendshipRepo struct {
	q sqlx.ExtContext
}

// FindBetween returns the relationship of the unordered pair in either direction.
func (r *FriendshipRepo) FindBetween(ctx context.Context, a, b int64) (models.Friendship, error) {
	var f models.Friendship
	err := sqlx.GetContext(ctx, r.q, &f,
		`SELECT `+friendshipColumns+` FROM friendships
        WHERE (requester_id=$1 AND addressee_id=$2) OR (requester_id=$2 AND addressee_id=$1)`,
		a, b)
	return f, translate(err, "friendship")
}

func (r *FriendshipRepo) FindDirected(ctx context.Context, requesterID, addresseeID int64, status models.FriendshipStatus) (models.Friendship, error) {
	var f models.Friendship
	err := sqlx.GetContext(ctx, r.q, &f,
		`SELECT `+friendshipColumns+` FROM friendships WHERE requester_id=$1 AND addressee_id=$2 AND status=$3`,
		requesterID, addresseeID, status)
	return f, translate(err, "friendship")
}

// Create inserts a pending request. The pair index turns a racing duplicate into a conflict.
func (r *FriendshipRepo) Create(ctx context.Context, requesterID, addresseeID int64) (models.Friendship, error) {
	var f models.Friendship
	err := sqlx.GetContext(ctx, r.q, &f,
		`INSERT INTO friendships (requester_id, addressee_id, status) VALUES ($1, $2, $3) RETURNING `+friendshipColumns,
		requesterID, addresseeID, models.FriendshipPending)
	return f, translate(err, "friendship")
}

func (r *FriendshipRepo) UpdateStatus(ctx context.Context, id int64, status models.FriendshipStatus) error {
	res, err := r.q.ExecContext(ctx, `UPDATE friendships SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "friendship")
}

func (r *FriendshipRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM friendships WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "friendship")
}

// ListByStatus returns every relationship of the given status the user takes part in.
func (r *FriendshipRepo) ListByStatus(ctx context.Context, userID int64, status models.FriendshipStatus) ([]models.Friendship, error) {
	var fs []models.Friendship
	err := sqlx.SelectContext(ctx, r.q, &fs,
		`SELECT `+friendshipColumns+` FROM friendships
        WHERE (requester_id=$1 OR addressee_id=$1) AND status=$2
        ORDER BY created_at DESC`,
		userID, status)
	return fs, err
}
