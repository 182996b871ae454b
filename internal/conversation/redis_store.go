package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const activityKey = "conversations:activity"

// RedisStore keeps each conversation as a JSON snapshot whose key expires after the
// conversation TTL, plus a sorted set of user ids scored by last activity.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if tracer == nil {
		tracer = otel.Tracer("barberbot.internal.conversation")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.store.get")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load %s: %w", userID, err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode %s: %w", userID, err)
	}
	span.SetAttributes(attribute.String("conversation.state", string(conv.State())))
	return &conv, nil
}

func (s *RedisStore) Put(ctx context.Context, conv *Conversation) error {
	ctx, span := s.tracer.Start(ctx, "conversation.store.put")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.state", string(conv.State())))

	data, err := json.Marshal(conv)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: encode %s: %w", conv.UserID, err)
	}
	// A little slack past the TTL keeps the snapshot around for the sweep to evict.
	expiry := time.Duration(0)
	if s.ttl > 0 {
		expiry = s.ttl + time.Minute
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, conversationKey(conv.UserID), data, expiry)
		pipe.ZAdd(ctx, activityKey, redis.Z{Score: float64(conv.LastActivity.UnixMilli()), Member: conv.UserID})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: save %s: %w", conv.UserID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, conversationKey(userID))
		pipe.ZRem(ctx, activityKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("conversation: delete %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.redis.ZRangeByScore(ctx, activityKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("conversation: list idle: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.redis.ZCard(ctx, activityKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conversation: count: %w", err)
	}
	return int(n), nil
}

func conversationKey(userID string) string {
	return fmt.Sprintf("conversation:%s", userID)
}
