package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"keeper/internal/models"
)

const userColumns = `id, public_id, username, profile_picture, push_token, created_at`

// UserRepository reads accounts. Accounts are provisioned by the identity service.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByPublicID(ctx context.Context, publicID string) (models.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	UpdatePushToken(ctx context.Context, username, token string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	q sqlx.ExtContext
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	return user, translate(err, "user")
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	return user, translate(err, "user")
}

func (r *UserRepo) GetByPublicID(ctx context.Context, publicID string) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, `SELECT `+userColumns+` FROM users WHERE public_id=$1`, publicID)
	return user, translate(err, "user")
}

// ListByIDs returns the users found for ids, in id order. Missing ids are skipped.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := sqlx.SelectContext(ctx, r.q, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	return users, err
}

func (r *UserRepo) UpdatePushToken(ctx context.Context, username, token string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET push_token=$1 WHERE username=$2`, token, username)
	if err != nil {
		return err
	}
	return requireAffected(res, "user")
}
