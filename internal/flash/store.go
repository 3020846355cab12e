package flash

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps pending flash messages per session until they are popped
type Store interface {
	Push(ctx context.Context, session, message string) error
	// Pop returns and removes all pending messages of a session in insertion order
	Pop(ctx context.Context, session string) ([]string, error)
}

type memoryEntry struct {
	messages []string
	expires  time.Time
}

// MemoryStore is a process local Store
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

// NewMemoryStore creates an in-memory store. Sessions without activity for ttl are
// dropped; ttl <= 0 keeps them until popped.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Push(_ context.Context, session, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()
	entry, ok := s.entries[session]
	if !ok {
		entry = &memoryEntry{}
		s.entries[session] = entry
	}
	entry.messages = append(entry.messages, message)
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, session string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()
	entry, ok := s.entries[session]
	if !ok {
		return nil, nil
	}
	delete(s.entries, session)
	return entry.messages, nil
}

// evictExpired must be called with mu held
func (s *MemoryStore) evictExpired() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	for session, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, session)
		}
	}
}

// RedisStore keeps messages in a redis list per session
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a redis backed store
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: "bgremover:flash:",
	}
}

func (s *RedisStore) key(session string) string {
	return s.prefix + session
}

func (s *RedisStore) Push(ctx context.Context, session, message string) error {
	key := s.key(session)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, message)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Pop(ctx context.Context, session string) ([]string, error) {
	key := s.key(session)
	var messages *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		messages = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages.Val(), nil
}
