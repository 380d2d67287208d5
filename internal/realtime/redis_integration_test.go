//go:build integration

package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *RedisClient {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisNotifier_SignalsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	require.NoError(t, client.Health(ctx))

	// Two notifiers stand in for two server instances
	first := NewRedisNotifier(client, nil)
	second := NewRedisNotifier(client, nil)
	defer first.Close()
	defer second.Close()

	l, err := second.Listen(ctx, "baby-a")
	require.NoError(t, err)
	other, err := second.Listen(ctx, "baby-b")
	require.NoError(t, err)

	require.NoError(t, first.Publish(ctx, "baby-a"))
	assert.True(t, receive(t, l))

	select {
	case <-other.C():
		t.Fatal("listener on another topic was signalled")
	default:
	}
}

func TestRedisNotifier_CloseEndsListeners(t *testing.T) {
	ctx := context.Background()
	n := NewRedisNotifier(newRedisClient(t), nil)

	l, err := n.Listen(ctx, "baby")
	require.NoError(t, err)

	require.NoError(t, n.Close())
	assert.False(t, receive(t, l))
}

func TestNewRedisClient_EmptyURLDisablesRedis(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, client)
}
