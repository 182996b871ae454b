package reminders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reminder id is unknown.
var ErrNotFound = errors.New("reminders: not found")

// Store persists reminders.
type Store interface {
	Create(ctx context.Context, r *Reminder) error
	Get(ctx context.Context, id uuid.UUID) (*Reminder, error)
	// ListDue returns pending reminders whose SendAt is at or before asOf, oldest first.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]Reminder, error)
	Update(ctx context.Context, r *Reminder) error
	// CancelByBooking marks the pending reminders of a booking as cancelled.
	CancelByBooking(ctx context.Context, bookingID string) (int, error)
	// CancelByRecipient marks every pending reminder addressed to recipient as cancelled.
	CancelByRecipient(ctx context.Context, recipient string) (int, error)
}

// MemoryStore keeps reminders in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]Reminder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reminders: make(map[uuid.UUID]Reminder)}
}

func (m *MemoryStore) Create(ctx context.Context, r *Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders[r.ID] = *r
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListDue(ctx context.Context, asOf time.Time, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reminder
	for _, r := range m.reminders {
		if r.Status == StatusPending && !r.SendAt.After(asOf) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendAt.Before(out[j].SendAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[r.ID]; !ok {
		return ErrNotFound
	}
	m.reminders[r.ID] = *r
	return nil
}

func (m *MemoryStore) CancelByBooking(ctx context.Context, bookingID string) (int, error) {
	return m.cancelWhere(func(r Reminder) bool { return r.BookingID == bookingID }), nil
}

func (m *MemoryStore) CancelByRecipient(ctx context.Context, recipient string) (int, error) {
	return m.cancelWhere(func(r Reminder) bool { return r.Recipient == recipient }), nil
}

func (m *MemoryStore) cancelWhere(match func(Reminder) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for id, r := range m.reminders {
		if r.Status != StatusPending || !match(r) {
			continue
		}
		r.Status = StatusCancelled
		r.UpdatedAt = now
		m.reminders[id] = r
		n++
	}
	return n
}
