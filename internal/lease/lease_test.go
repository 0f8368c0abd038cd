package lease

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	// Other keys are independent
	otherRelease, err := l.Acquire(ctx, "job-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, otherRelease(ctx))

	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocal_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	l := NewLocal()
	l.now = func() time.Time { return now }

	staleRelease, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	freshRelease, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	// The stale holder must not release the new holder's lease
	require.NoError(t, staleRelease(ctx))
	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, freshRelease(ctx))
}

func TestLocal_EmptyKey(t *testing.T) {
	_, err := NewLocal().Acquire(context.Background(), "", time.Minute)
	require.Error(t, err)
}

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}
	return client
}

func TestRedis_AcquireRelease(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	l := NewRedis(client, "test:lease:")
	key := "job-" + time.Now().Format("150405.000000000")

	release, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedis_ReleaseAfterTakeover(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	l := NewRedis(client, "test:lease:")
	key := "job-takeover-" + time.Now().Format("150405.000000000")

	staleRelease, err := l.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	freshRelease, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	require.NoError(t, staleRelease(ctx))
	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrHeld, "stale release must not drop the new lease")

	require.NoError(t, freshRelease(ctx))
}
