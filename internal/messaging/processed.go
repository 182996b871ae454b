package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultProcessedTTL is how long a handled MessageSid is remembered. Twilio
// stops retrying a webhook well within this window.
const DefaultProcessedTTL = 24 * time.Hour

// ProcessedStore records inbound messages that were already handled.
type ProcessedStore interface {
	// MarkProcessed records the event id for the provider, returning false if it
	// was already recorded.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// RedisProcessedStore keeps handled event ids as expiring Redis keys.
type RedisProcessedStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisProcessedStore(client *redis.Client, ttl time.Duration) *RedisProcessedStore {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &RedisProcessedStore{redis: client, ttl: ttl}
}

func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, processedKey(provider, eventID), 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("messaging: mark processed: %w", err)
	}
	return ok, nil
}

func processedKey(provider, eventID string) string {
	return "barberbot:processed:" + provider + ":" + eventID
}

// MemoryProcessedStore is the in-process ProcessedStore.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &MemoryProcessedStore{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (s *MemoryProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
		}
	}
	key := processedKey(provider, eventID)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return true, nil
}
