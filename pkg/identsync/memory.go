package identsync

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCache is a Cache kept in process memory.
type MemoryCache struct {
	mu   sync.RWMutex
	rows map[string]AccountIdentity
}

func NewMemoryCache(ids ...AccountIdentity) *MemoryCache {
	c := &MemoryCache{rows: make(map[string]AccountIdentity, len(ids))}
	for _, id := range ids {
		c.rows[id.AccountID] = id
	}
	return c
}

func (c *MemoryCache) List(context.Context) ([]AccountIdentity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AccountIdentity, 0, len(c.rows))
	for _, id := range c.rows {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (c *MemoryCache) UpdateUsername(_ context.Context, accountID, username string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.rows[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	id.Username = username
	id.UpdatedAt = at
	c.rows[accountID] = id
	return nil
}

func (c *MemoryCache) Upsert(_ context.Context, id AccountIdentity) (AccountIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.rows[id.AccountID]; ok {
		return existing, nil
	}
	c.rows[id.AccountID] = id
	return id, nil
}

// Get returns the cached identity of accountID.
func (c *MemoryCache) Get(accountID string) (AccountIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.rows[accountID]
	return id, ok
}
