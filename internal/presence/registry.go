// Package presence tracks which users currently hold a live connection.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// releaseScript decrements a user's connection count and drops the field at zero.
var releaseScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return n
`)

// RedisRegistry keeps a per-user count of instances holding a connection in a
// Redis hash shared by every instance. A user is online while the count is positive.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

func NewRedisRegistry(client *redis.Client, key string) *RedisRegistry {
	return &RedisRegistry{client: client, key: key}
}

func (r *RedisRegistry) IsOnline(ctx context.Context, username string) (bool, error) {
	n, err := r.client.HGet(ctx, r.key, username).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence lookup %s: %w", username, err)
	}
	return n > 0, nil
}

// MarkOnline is called by an instance when it accepts the user's first local connection.
func (r *RedisRegistry) MarkOnline(ctx context.Context, username string) error {
	if err := r.client.HIncrBy(ctx, r.key, username, 1).Err(); err != nil {
		return fmt.Errorf("presence mark online %s: %w", username, err)
	}
	return nil
}

// MarkOffline is called by an instance when the user's last local connection closes.
func (r *RedisRegistry) MarkOffline(ctx context.Context, username string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, username).Err(); err != nil {
		return fmt.Errorf("presence mark offline %s: %w", username, err)
	}
	return nil
}

// Online lists every user currently marked online.
func (r *RedisRegistry) Online(ctx context.Context) ([]string, error) {
	counts, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	users := make([]string, 0, len(counts))
	for user, raw := range counts {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}
