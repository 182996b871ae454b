package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no conversation exists for a user.
var ErrNotFound = errors.New("conversation: not found")

// Store persists conversations keyed by user id.
type Store interface {
	Get(ctx context.Context, userID string) (*Conversation, error)
	Put(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, userID string) error
	// IdleSince returns the ids whose last activity is before cutoff.
	IdleSince(ctx context.Context, cutoff time.Time) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// MemoryStore keeps conversations in process memory. Values are copied on the way in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation)}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.UserID] = conv.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, userID)
	return nil
}

func (m *MemoryStore) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, conv := range m.convs {
		if conv.LastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs), nil
}
