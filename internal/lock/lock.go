package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker is the serialization point for read-modify-write sequences on
// shared calendar and appointment keys. Lock is non-blocking: it reports
// false when another holder owns the key. The returned token identifies
// this holder, and Unlock releases the key only while that token still
// owns it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type lease struct {
	token   string
	expires time.Time
}

// LocalLock is an in-process Locker for single-instance deployments and tests.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]lease
	now  func() time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{
		held: make(map[string]lease),
		now:  time.Now,
	}
}

func (l *LocalLock) Lock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.held[key] = lease{token: token, expires: now.Add(ttl)}

	return token, true, nil
}

func (l *LocalLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}

func (l *LocalLock) Close() error {
	return nil
}
