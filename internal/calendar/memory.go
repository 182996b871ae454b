package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend keeps events in process memory. Used in development and tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	events map[string]Event
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{events: make(map[string]Event)}
}

func (m *MemoryBackend) Busy(ctx context.Context, from, to time.Time) ([]Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Interval
	for _, ev := range m.events {
		if ev.Start.Before(to) && ev.End.After(from) {
			out = append(out, Interval{Start: ev.Start, End: ev.End})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryBackend) Insert(ctx context.Context, ev Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.events[ev.ID] = ev
	m.mu.Unlock()
	return ev.ID, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrBookingNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *MemoryBackend) FindUpcoming(ctx context.Context, from time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, ev := range m.events {
		if !ev.Start.Before(from) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Get returns a stored event.
func (m *MemoryBackend) Get(id string) (Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	return ev, ok
}

// Len returns the number of stored events.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
