package scheduler

import (
	"context"
	"sync"
)

// conversationLocks serializes turns of the same conversation. Entries are
// reference counted and removed when the last holder or waiter leaves, so
// ids never accumulate.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	ch   chan struct{}
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*conversationLock)}
}

// Lock waits until id is free or ctx is done. The returned func releases it.
func (c *conversationLocks) Lock(ctx context.Context, id string) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &conversationLock{ch: make(chan struct{}, 1)}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			c.release(id, l)
		}, nil
	case <-ctx.Done():
		c.release(id, l)
		return nil, ctx.Err()
	}
}

func (c *conversationLocks) release(id string, l *conversationLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, id)
	}
}

// Len returns the number of ids currently held or awaited.
func (c *conversationLocks) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
