// Package cache keeps a Redis read-through copy of user accounts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"keeper/internal/models"
	"keeper/internal/repositories"
)

const keyPrefix = "keeper:user:"

// entry mirrors models.User including the fields hidden from API responses.
type entry struct {
	ID             int64     `json:"id"`
	PublicID       string    `json:"public_id"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture"`
	PushToken      string    `json:"push_token"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserCache serves user lookups by username from Redis, loading misses from the store.
type UserCache struct {
	client *redis.Client
	users  repositories.UserRepository
	ttl    time.Duration
	group  singleflight.Group
	log    *zap.Logger
}

func NewUserCache(client *redis.Client, users repositories.UserRepository, ttl time.Duration, log *zap.Logger) *UserCache {
	return &UserCache{client: client, users: users, ttl: ttl, log: log}
}

// GetByUsername returns the cached user, falling back to the store on a miss or a Redis failure.
func (c *UserCache) GetByUsername(ctx context.Context, username string) (models.User, error) {
	key := keyPrefix + username

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry
		if err := json.Unmarshal(data, &e); err == nil {
			return models.User(e), nil
		}
		c.log.Warn("discarding corrupt user cache entry", zap.String("username", username))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("user cache read failed", zap.String("username", username), zap.Error(err))
	}

	v, err, _ := c.group.Do(username, func() (interface{}, error) {
		user, err := c.users.GetByUsername(ctx, username)
		if err != nil {
			return models.User{}, err
		}
		c.store(ctx, key, user)
		return user, nil
	})
	if err != nil {
		return models.User{}, err
	}
	return v.(models.User), nil
}

// UpdatePushToken saves the token and evicts the cached copy. A failed
// eviction is logged; the stored token is already committed.
func (c *UserCache) UpdatePushToken(ctx context.Context, username, token string) error {
	if err := c.users.UpdatePushToken(ctx, username, token); err != nil {
		return err
	}
	if err := c.Evict(ctx, username); err != nil {
		c.log.Warn("user cache eviction failed", zap.String("username", username), zap.Error(err))
	}
	return nil
}

func (c *UserCache) Evict(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, keyPrefix+username).Err(); err != nil {
		return fmt.Errorf("evict user %s: %w", username, err)
	}
	return nil
}

func (c *UserCache) store(ctx context.Context, key string, user models.User) {
	data, err := json.Marshal(entry(user))
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("user cache write failed", zap.String("key", key), zap.Error(err))
	}
}
