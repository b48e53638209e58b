// Package memstore is the in-memory reference implementation of
// lifecycle.Repository. It enforces the same optimistic version check as
// the Postgres stores so engine behavior is identical under test.
package memstore

import (
	"context"
	"sync"
	"time"

	"pixcore/internal/lifecycle"
	dErrors "pixcore/pkg/domain-errors"
)

type Store[E lifecycle.Cloneable[E]] struct {
	kind  string
	clock func() time.Time

	mu    sync.RWMutex
	items map[string]E
}

type Option[E lifecycle.Cloneable[E]] func(*Store[E])

func WithClock[E lifecycle.Cloneable[E]](clock func() time.Time) Option[E] {
	return func(s *Store[E]) { s.clock = clock }
}

func New[E lifecycle.Cloneable[E]](kind string, opts ...Option[E]) *Store[E] {
	s := &Store[E]{
		kind:  kind,
		clock: time.Now,
		items: make(map[string]E),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store[E]) GetByID(_ context.Context, id string) (E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero E
	e, ok := s.items[id]
	if !ok {
		return zero, dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", s.kind, id)
	}
	return e.Clone(), nil
}

func (s *Store[E]) Create(_ context.Context, e E) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	meta := e.GetMeta()
	if _, exists := s.items[meta.ID]; exists {
		return zero, dErrors.Newf(dErrors.CodeConflict, "%s %s already exists", s.kind, meta.ID)
	}

	now := s.clock()
	stored := e.Clone()
	m := stored.GetMeta()
	m.Version = 1
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.items[m.ID] = stored
	return stored.Clone(), nil
}

// Update writes e only if its version matches the stored version, then
// bumps the version. A mismatch means another writer won; callers reread
// and rerun their checks.
func (s *Store[E]) Update(_ context.Context, e E) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(e)
}

func (s *Store[E]) updateLocked(e E) (E, error) {
	var zero E
	meta := e.GetMeta()
	current, ok := s.items[meta.ID]
	if !ok {
		return zero, dErrors.Newf(dErrors.CodeNotFound, "%s %s not found", s.kind, meta.ID)
	}
	if current.GetMeta().Version != meta.Version {
		return zero, dErrors.Newf(dErrors.CodeConflict,
			"%s %s: version %d is stale", s.kind, meta.ID, meta.Version)
	}

	stored := e.Clone()
	m := stored.GetMeta()
	m.Version++
	m.UpdatedAt = s.clock()
	s.items[m.ID] = stored
	return stored.Clone(), nil
}

func (s *Store[E]) ListByStateOlderThan(_ context.Context, states []lifecycle.State, cutoff time.Time) ([]E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []E
	for _, e := range s.items {
		m := e.GetMeta()
		if !stateIn(m.State, states) {
			continue
		}
		if !m.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// WithLock runs fn under the store mutex so multi-entity writes (refund
// plus devolution) commit atomically. fn gets a version-checked updater for
// the primary entity.
func (s *Store[E]) WithLock(fn func(update func(E) (E, error)) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.updateLocked)
}

func stateIn(state lifecycle.State, set []lifecycle.State) bool {
	for _, s := range set {
		if state == s {
			return true
		}
	}
	return false
}
