//go:build integration

package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a throwaway Redis server and returns its URL.
func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func newRedisStore(t *testing.T, url string, ttl time.Duration) *RedisStore {
	t.Helper()
	s, err := NewRedisStore(url, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		s := newRedisStore(t, url, time.Hour)

		id, err := s.Reserve(ctx, "k1")
		require.NoError(t, err)
		assert.Zero(t, id)

		_, err = s.Reserve(ctx, "k1")
		assert.ErrorIs(t, err, ErrInProgress)

		require.NoError(t, s.Complete(ctx, "k1", 42))
		id, err = s.Reserve(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, uint(42), id)

		// Release only removes a pending marker, never a completed key.
		require.NoError(t, s.Release(ctx, "k1"))
		id, err = s.Reserve(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, uint(42), id)
	})

	t.Run("release", func(t *testing.T) {
		s := newRedisStore(t, url, time.Hour)
		_, err := s.Reserve(ctx, "k2")
		require.NoError(t, err)
		require.NoError(t, s.Release(ctx, "k2"))

		id, err := s.Reserve(ctx, "k2")
		require.NoError(t, err)
		assert.Zero(t, id, "released key can be reserved again")

		// Releasing an unknown key is a no-op.
		require.NoError(t, s.Release(ctx, "never-reserved"))
	})

	t.Run("expiry", func(t *testing.T) {
		s := newRedisStore(t, url, time.Second)
		require.NoError(t, s.Complete(ctx, "k3", 7))
		require.Eventually(t, func() bool {
			id, err := s.Reserve(ctx, "k3")
			return err == nil && id == 0
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("single winner", func(t *testing.T) {
		s := newRedisStore(t, url, time.Hour)
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if id, err := s.Reserve(ctx, "shared"); err == nil && id == 0 {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("shared between instances", func(t *testing.T) {
		a := newRedisStore(t, url, time.Hour)
		b := newRedisStore(t, url, time.Hour)
		_, err := a.Reserve(ctx, "k4")
		require.NoError(t, err)
		_, err = b.Reserve(ctx, "k4")
		assert.ErrorIs(t, err, ErrInProgress)
		require.NoError(t, a.Complete(ctx, "k4", 9))
		id, err := b.Reserve(ctx, "k4")
		require.NoError(t, err)
		assert.Equal(t, uint(9), id)
	})
}
