// Package events defines the domain event emitter port. Emission is
// best-effort from the engine's perspective: local state is the source of
// truth and delivery failures never revert a committed transition.
package events

import (
	"context"
	"sync"
	"time"
)

// Emitter publishes a domain event for downstream consumers (notification,
// audit). Implementations should return quickly; the engine logs and
// swallows any error.
type Emitter interface {
	Emit(ctx context.Context, name string, payload any) error
}

// Recorded is one event captured by the Memory emitter.
type Recorded struct {
	Name       string
	Payload    any
	OccurredAt time.Time
}

// Memory records events in order. Used by tests and as a sink when no
// broker is configured.
type Memory struct {
	mu     sync.Mutex
	events []Recorded
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Emit(_ context.Context, name string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Recorded{Name: name, Payload: payload, OccurredAt: time.Now()})
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Recorded{}, m.events...)
}

// Clear drops recorded events between test cases.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
