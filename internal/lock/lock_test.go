package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockExclusive(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	token, ok, err := l.Lock(ctx, "day:t1:2026-03-01", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = l.Lock(ctx, "day:t1:2026-03-01", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.Lock(ctx, "day:t1:2026-03-02", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different key must not contend")

	require.NoError(t, l.Unlock(ctx, "day:t1:2026-03-01", token))
	_, ok, err = l.Lock(ctx, "day:t1:2026-03-01", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLockExpires(t *testing.T) {
	l := NewLocalLock()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, _ := l.Lock(ctx, "k", 10*time.Second)
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok, _ = l.Lock(ctx, "k", 10*time.Second)
	assert.True(t, ok, "expired lock must be re-acquirable")
}

func TestLocalLockExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	l := NewLocalLock()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	first, ok, _ := l.Lock(ctx, "k", 10*time.Second)
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	second, ok, _ := l.Lock(ctx, "k", 10*time.Second)
	require.True(t, ok)
	require.NotEqual(t, first, second)

	require.NoError(t, l.Unlock(ctx, "k", first))
	_, ok, _ = l.Lock(ctx, "k", 10*time.Second)
	assert.False(t, ok, "successor must still hold the key")

	require.NoError(t, l.Unlock(ctx, "k", second))
	_, ok, _ = l.Lock(ctx, "k", 10*time.Second)
	assert.True(t, ok)
}

func newRedisLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLockWithClient(client), mr
}

func TestRedisLockExclusive(t *testing.T) {
	l, mr := newRedisLock(t)
	ctx := context.Background()

	token, ok, err := l.Lock(ctx, "day:t1:2026-03-01", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:day:t1:2026-03-01"))

	other := NewRedisLockWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	_, ok, err = other.Lock(ctx, "day:t1:2026-03-01", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "day:t1:2026-03-01", token))
	assert.False(t, mr.Exists("lock:day:t1:2026-03-01"))
}

func TestRedisLockDoesNotReleaseForeignHolder(t *testing.T) {
	l, mr := newRedisLock(t)
	ctx := context.Background()

	token, ok, err := l.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Our lease expires and another instance takes the key.
	mr.FastForward(6 * time.Second)
	require.NoError(t, mr.Set("lock:k", "someone-else"))

	require.NoError(t, l.Unlock(ctx, "k", token))

	v, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRedisLockExpiredHolderCannotReleaseSuccessorInSameProcess(t *testing.T) {
	l, mr := newRedisLock(t)
	ctx := context.Background()

	first, ok, err := l.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)
	second, ok, err := l.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "k", first))
	v, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, second, v)

	require.NoError(t, l.Unlock(ctx, "k", second))
	assert.False(t, mr.Exists("lock:k"))
}

func TestRedisLockUnlockWithoutTokenIsNoop(t *testing.T) {
	l, _ := newRedisLock(t)
	assert.NoError(t, l.Unlock(context.Background(), "never-locked", ""))
}
