package ws

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keeper/internal/mocks"
	"keeper/internal/presence"
)

func TestPresenceSurvivesDisconnectOnOtherInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	registry := presence.NewRedisRegistry(client, "presence:online_users")
	ctx := context.Background()

	hubA := NewHub(registry, new(mocks.GroupServiceMock), zap.NewNop())
	hubB := NewHub(registry, new(mocks.GroupServiceMock), zap.NewNop())

	onA := newClient(alice, ConnInfo{ConnID: "a-1"})
	onB := newClient(alice, ConnInfo{ConnID: "b-1"})
	hubA.register(ctx, onA)
	hubB.register(ctx, onB)

	hubA.unregister(onA)
	online, err := registry.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	hubB.unregister(onB)
	online, err = registry.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
}
