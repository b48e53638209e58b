// Package keylock serializes work per entity id. The transition engine
// wraps every execution in Do so at most one transition per id is in
// flight, while different ids proceed in parallel.
package keylock

import (
	"context"
	"sync"
)

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Mutex is an in-process Locker backed by a map of per-key channels.
// Entries are dropped once the last waiter releases, so the map does not
// grow with the id space.
type Mutex struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewMutex() *Mutex {
	return &Mutex{keys: make(map[string]*entry)}
}

func (m *Mutex) acquire(ctx context.Context, key string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return e, nil
	case <-ctx.Done():
		m.release(key, e, false)
		return nil, ctx.Err()
	}
}

func (m *Mutex) release(key string, e *entry, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held {
		<-e.ch
	}
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

func (m *Mutex) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e, err := m.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer m.release(key, e, true)
	return fn(ctx)
}
