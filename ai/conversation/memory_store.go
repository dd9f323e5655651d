package conversation

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps states in process memory with LRU and TTL eviction.
// States are lost on restart; that is accepted for a single-process
// deployment. Use RedisStore to share states between processes.
type MemoryStore struct {
	cache *expirable.LRU[string, *State]
}

// NewMemoryStore creates a store holding at most capacity states, each for ttl.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{cache: expirable.NewLRU[string, *State](capacity, nil, ttl)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save implements Store. Saving refreshes the TTL.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	m.cache.Add(state.ID, state.Clone())
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

// Len returns the number of live states.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
