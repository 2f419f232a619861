package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. It is meant for tests and single
// instance deployments; revocations do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty store using time.Now.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock returns an empty store reading time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

func (m *MemoryStore) Revoke(_ context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[sessionID]; !ok || until.After(prev) {
		m.entries[sessionID] = until
	}
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.entries[sessionID]
	return ok && until.After(m.now()), nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for sid, until := range m.entries {
		if !until.After(now) {
			delete(m.entries, sid)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
