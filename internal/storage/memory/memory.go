package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"mindcare-service/internal/storage"
)

type Storage struct {
	mu   sync.RWMutex
	data map[string]string
}

func New() *Storage {
	return &Storage{data: make(map[string]string)}
}

func (s *Storage) Get(_ context.Context, key string) (string, error) {
	const op = "storage.memory.Get"

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrKeyNotFound)
	}
	return v, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

func (s *Storage) Incr(_ context.Context, key string) (int64, error) {
	const op = "storage.memory.Incr"

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if v, ok := s.data[key]; ok {
		cur, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		n = cur
	}
	n++
	s.data[key] = strconv.FormatInt(n, 10)

	return n, nil
}

func (s *Storage) Close() error {
	return nil
}
