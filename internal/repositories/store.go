package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"keeper/internal/apperrors"
)

// Tx groups the repositories bound to one unit of work.
type Tx interface {
	Users() UserRepository
	Rooms() RoomRepository
	Messages() MessageRepository
	Reactions() ReactionRepository
	Receipts() ReceiptRepository
	Friendships() FriendshipRepository
	HiddenRooms() HiddenRoomRepository
}

// Store exposes repositories outside a transaction and runs units of work atomically.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type queries struct {
	q sqlx.ExtContext
}

func (r queries) Users() UserRepository             { return &UserRepo{q: r.q} }
func (r queries) Rooms() RoomRepository             { return &RoomRepo{q: r.q} }
func (r queries) Messages() MessageRepository       { return &MessageRepo{q: r.q} }
func (r queries) Reactions() ReactionRepository     { return &ReactionRepo{q: r.q} }
func (r queries) Receipts() ReceiptRepository       { return &ReceiptRepo{q: r.q} }
func (r queries) Friendships() FriendshipRepository { return &FriendshipRepo{q: r.q} }
func (r queries) HiddenRooms() HiddenRoomRepository { return &HiddenRoomRepo{q: r.q} }

// PGStore is the Postgres implementation of Store.
type PGStore struct {
	queries
	db *sqlx.DB
}

// NewStore constructs a PGStore.
func NewStore(db *sqlx.DB) *PGStore {
	return &PGStore{queries: queries{q: db}, db: db}
}

// WithinTx runs fn in a transaction, committing only when fn succeeds.
func (s *PGStore) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(queries{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const uniqueViolation = "23505"

// translate maps driver errors onto the application taxonomy.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.Conflict("%s already exists", what)
	}
	return err
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("%s not found", what)
	}
	return nil
}
