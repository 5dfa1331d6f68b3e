package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	r, err := NewRedis(ctx, RedisOptions{Addr: endpoint, Prefix: "test:", Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis_GetSetDelete(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	_, ok := r.Get(ctx, "missing")
	assert.False(t, ok)

	r.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	raw, err := r.c.Get(ctx, "test:k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", raw, "keys are stored with the prefix")

	r.Delete(ctx, "k")
	_, ok = r.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_TTL(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	r.Set(ctx, "short", []byte("v"), 100*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	_, ok := r.Get(ctx, "short")
	assert.False(t, ok)
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedis(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
