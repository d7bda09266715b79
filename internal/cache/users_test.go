package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keeper/internal/apperrors"
	"keeper/internal/models"
)

type countingUsers struct {
	loads atomic.Int32
	users map[string]models.User
}

func (c *countingUsers) GetByID(context.Context, int64) (models.User, error) {
	return models.User{}, apperrors.NotFound("user not found")
}

func (c *countingUsers) GetByUsername(_ context.Context, username string) (models.User, error) {
	c.loads.Add(1)
	u, ok := c.users[username]
	if !ok {
		return models.User{}, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (c *countingUsers) GetByPublicID(context.Context, string) (models.User, error) {
	return models.User{}, apperrors.NotFound("user not found")
}

func (c *countingUsers) ListByIDs(context.Context, []int64) ([]models.User, error) { return nil, nil }

func (c *countingUsers) UpdatePushToken(_ context.Context, username, token string) error {
	u, ok := c.users[username]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.PushToken = token
	c.users[username] = u
	return nil
}

func newTestCache(t *testing.T) (*UserCache, *countingUsers, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := &countingUsers{users: map[string]models.User{
		"alice": {ID: 1, PublicID: "pub-1", Username: "alice", PushToken: "tok"},
	}}
	return NewUserCache(client, users, time.Hour, zap.NewNop()), users, mr
}

func TestGetByUsernameCachesAfterFirstLoad(t *testing.T) {
	c, users, mr := newTestCache(t)
	ctx := context.Background()

	first, err := c.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	second, err := c.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "tok", second.PushToken)
	assert.Equal(t, int32(1), users.loads.Load())
	assert.True(t, mr.Exists(keyPrefix+"alice"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"alice"))
}

func TestGetByUsernameMissingUser(t *testing.T) {
	c, _, mr := newTestCache(t)

	_, err := c.GetByUsername(context.Background(), "ghost")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, mr.Exists(keyPrefix+"ghost"))
}

func TestUpdatePushTokenEvicts(t *testing.T) {
	c, users, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, c.UpdatePushToken(ctx, "alice", "new-token"))
	assert.False(t, mr.Exists(keyPrefix+"alice"))

	user, err := c.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new-token", user.PushToken)
	assert.Equal(t, int32(2), users.loads.Load())
}

func TestGetByUsernameFallsBackWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	users := &countingUsers{users: map[string]models.User{"alice": {ID: 1, Username: "alice"}}}
	c := NewUserCache(client, users, time.Hour, zap.NewNop())

	user, err := c.GetByUsername(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, int32(1), users.loads.Load())
}

func TestUpdatePushTokenSucceedsWhenEvictionFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	users := &countingUsers{users: map[string]models.User{"alice": {ID: 1, Username: "alice", PushToken: "tok"}}}
	c := NewUserCache(client, users, time.Hour, zap.NewNop())

	err := c.UpdatePushToken(context.Background(), "alice", "new-token")

	require.NoError(t, err)
	assert.Equal(t, "new-token", users.users["alice"].PushToken)
}
