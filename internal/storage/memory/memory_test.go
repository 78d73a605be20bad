package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-service/internal/storage"
)

func TestGetMissingKey(t *testing.T) {
	s := New()

	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestSetThenGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestIncrConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Incr(ctx, "seq")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Incr(ctx, "seq")
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
}

func TestIncrNonInteger(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "seq", "abc"))

	_, err := s.Incr(ctx, "seq")
	require.Error(t, err)
}
