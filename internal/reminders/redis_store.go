package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	dueKey = "reminders:due"
	// retention keeps finished reminders readable for a while after the appointment.
	retention = 7 * 24 * time.Hour
)

// RedisStore keeps each reminder as a JSON document and indexes pending ones in a
// sorted set scored by send time.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, tracer trace.Tracer) *RedisStore {
	if tracer == nil {
		tracer = otel.Tracer("barberbot.internal.reminders")
	}
	return &RedisStore{redis: client, tracer: tracer}
}

func (s *RedisStore) Create(ctx context.Context, r *Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	ctx, span := s.tracer.Start(ctx, "reminders.create")
	defer span.End()
	span.SetAttributes(attribute.String("reminder.id", r.ID.String()))

	if err := s.write(ctx, r); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	data, err := s.redis.Get(ctx, reminderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reminders: load %s: %w", id, err)
	}
	var r Reminder
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("reminders: decode %s: %w", id, err)
	}
	return &r, nil
}

func (s *RedisStore) ListDue(ctx context.Context, asOf time.Time, limit int) ([]Reminder, error) {
	ctx, span := s.tracer.Start(ctx, "reminders.list_due")
	defer span.End()

	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(asOf.Unix(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := s.redis.ZRangeByScore(ctx, dueKey, by).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}

	out := make([]Reminder, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.redis.ZRem(ctx, dueKey, raw)
			continue
		}
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.redis.ZRem(ctx, dueKey, raw)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if r.Status != StatusPending {
			s.redis.ZRem(ctx, dueKey, raw)
			continue
		}
		out = append(out, *r)
	}
	span.SetAttributes(attribute.Int("reminders.due", len(out)))
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, r *Reminder) error {
	exists, err := s.redis.Exists(ctx, reminderKey(r.ID)).Result()
	if err != nil {
		return fmt.Errorf("reminders: update %s: %w", r.ID, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.write(ctx, r)
}

func (s *RedisStore) CancelByBooking(ctx context.Context, bookingID string) (int, error) {
	return s.cancelMembers(ctx, bookingKey(bookingID))
}

func (s *RedisStore) CancelByRecipient(ctx context.Context, recipient string) (int, error) {
	return s.cancelMembers(ctx, recipientKey(recipient))
}

func (s *RedisStore) cancelMembers(ctx context.Context, setKey string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "reminders.cancel")
	defer span.End()

	ids, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("reminders: cancel: %w", err)
	}
	n := 0
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.redis.SRem(ctx, setKey, raw)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return n, err
		}
		if r.Status != StatusPending {
			continue
		}
		r.Status = StatusCancelled
		r.UpdatedAt = time.Now().UTC()
		if err := s.write(ctx, r); err != nil {
			span.RecordError(err)
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *RedisStore) write(ctx context.Context, r *Reminder) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("reminders: encode %s: %w", r.ID, err)
	}
	ttl := time.Until(r.AppointmentAt.Add(retention))
	if ttl <= 0 {
		ttl = time.Hour
	}
	member := r.ID.String()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, reminderKey(r.ID), data, ttl)
		if r.Status == StatusPending {
			pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(r.SendAt.Unix()), Member: member})
		} else {
			pipe.ZRem(ctx, dueKey, member)
		}
		if r.BookingID != "" {
			pipe.SAdd(ctx, bookingKey(r.BookingID), member)
			pipe.Expire(ctx, bookingKey(r.BookingID), ttl)
		}
		if r.Recipient != "" {
			pipe.SAdd(ctx, recipientKey(r.Recipient), member)
			pipe.Expire(ctx, recipientKey(r.Recipient), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reminders: save %s: %w", r.ID, err)
	}
	return nil
}

func reminderKey(id uuid.UUID) string {
	return fmt.Sprintf("reminder:%s", id)
}

func bookingKey(bookingID string) string {
	return fmt.Sprintf("reminders:booking:%s", bookingID)
}

func recipientKey(recipient string) string {
	return fmt.Sprintf("reminders:recipient:%s", recipient)
}
