package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists whole named caches as opaque blobs. Production uses Redis;
// tests inject MemoryStore.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// ErrNotPersisted is returned by Load when no snapshot exists
type notPersistedError struct{ name string }

func (e *notPersistedError) Error() string {
	return "no persisted snapshot for cache " + e.name
}

// IsNotPersisted reports whether err means "no snapshot stored"
func IsNotPersisted(err error) bool {
	_, ok := err.(*notPersistedError)
	return ok
}

const storeKeyPrefix = "cache:snapshot:"

// RedisStore persists cache snapshots in Redis
type RedisStore struct {
	client *RedisClient
}

// NewRedisStore creates a Redis-backed snapshot store
func NewRedisStore(client *RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, storeKeyPrefix+name)
	if err == redis.Nil {
		return nil, &notPersistedError{name: name}
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *RedisStore) Save(ctx context.Context, name string, data []byte) error {
	return s.client.Set(ctx, storeKeyPrefix+name, string(data))
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	return s.client.Del(ctx, storeKeyPrefix+name)
}

// MemoryStore is an in-memory Store for tests and redis-less development
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory snapshot store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, &notPersistedError{name: name}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[name] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}
