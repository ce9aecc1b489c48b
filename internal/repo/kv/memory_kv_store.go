package kv

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory. It is the store used by
// tests and by short-lived demo instances.
type MemoryStore struct {
	m      sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// MemoryStoreFactory creates a factory function that returns a new, empty MemoryStore.
func MemoryStoreFactory() StoreFactory {
	return func(context.Context) (Store, error) {
		return NewMemoryStore(), nil
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, false, err
	}

	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}

	return clone(value), true, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.data[key] = clone(value)

	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.data, key)

	return nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	s.closed = true
	s.data = nil

	return nil
}

func (s *MemoryStore) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}

	return ValidateKey(key)
}
