package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7.4-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewClient(endpoint, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCheckoutGuard(t *testing.T) {
	client := startRedis(t)

	t.Run("lock is exclusive until released by its holder", func(t *testing.T) {
		ctx := t.Context()

		token, ok, err := client.AcquireLock(ctx, "checkout:cart:1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = client.AcquireLock(ctx, "checkout:cart:1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, client.ReleaseLock(ctx, "checkout:cart:1", "someone-else"))
		_, ok, err = client.AcquireLock(ctx, "checkout:cart:1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "a stale token must not release the lock")

		require.NoError(t, client.ReleaseLock(ctx, "checkout:cart:1", token))
		_, ok, err = client.AcquireLock(ctx, "checkout:cart:1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("idempotency keys map to order ids", func(t *testing.T) {
		ctx := t.Context()

		_, found, err := client.GetIdempotentOrder(ctx, "key-1")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, client.SetIdempotentOrder(ctx, "key-1", 42, time.Minute))
		orderID, found, err := client.GetIdempotentOrder(ctx, "key-1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(42), orderID)
	})
}
