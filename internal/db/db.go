package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the Postgres pool and applies the schema.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied")

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id BIGSERIAL PRIMARY KEY,
        public_id TEXT NOT NULL UNIQUE,
        username VARCHAR(15) NOT NULL UNIQUE,
        profile_picture TEXT NOT NULL DEFAULT '',
        push_token TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
        id BIGSERIAL PRIMARY KEY,
        name VARCHAR(100) NOT NULL,
        invite_code TEXT NOT NULL UNIQUE,
        owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
        is_private BOOLEAN NOT NULL DEFAULT FALSE,
        dm_user_low BIGINT,
        dm_user_high BIGINT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE(dm_user_low, dm_user_high)
    );`,
	`CREATE TABLE IF NOT EXISTS chatroom_participants (
        room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
        user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        PRIMARY KEY(room_id, user_id)
    );`,
	`CREATE TABLE IF NOT EXISTS messages (
        id BIGSERIAL PRIMARY KEY,
        room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
        sender_id BIGINT NOT NULL REFERENCES users(id),
        content TEXT NOT NULL,
        reply_to_id BIGINT REFERENCES messages(id) ON DELETE SET NULL,
        edited BOOLEAN NOT NULL DEFAULT FALSE,
        is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
        link_preview_url TEXT,
        link_preview_title TEXT,
        link_preview_description VARCHAR(1024),
        link_preview_image TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS messages_room_id_idx ON messages(room_id, id);`,
	`CREATE TABLE IF NOT EXISTS reactions (
        id BIGSERIAL PRIMARY KEY,
        message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
        user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        emoji VARCHAR(32) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE(user_id, message_id, emoji)
    );`,
	`CREATE TABLE IF NOT EXISTS message_read_receipts (
        id BIGSERIAL PRIMARY KEY,
        message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
        user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE(user_id, message_id)
    );`,
	`CREATE TABLE IF NOT EXISTS friendships (
        id BIGSERIAL PRIMARY KEY,
        requester_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        addressee_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        status VARCHAR(16) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CHECK (requester_id <> addressee_id)
    );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS friendships_pair_idx
        ON friendships (LEAST(requester_id, addressee_id), GREATEST(requester_id, addressee_id));`,
	`CREATE TABLE IF NOT EXISTS hidden_chat_rooms (
        user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY(user_id, room_id)
    );`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
