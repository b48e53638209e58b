package store

import (
	"context"
	"time"

	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/memstore"
	"pixcore/internal/pixkey/models"
	dErrors "pixcore/pkg/domain-errors"
)

var liveStates = []lifecycle.State{
	models.StatePending, models.StateReady,
	models.StateOwnershipPending, models.StatePortabilityPending,
	models.StateClaimPending, models.StateDeleting, models.StateError,
}

// Memory is the in-memory key repository used by tests and the
// single-process profile. It mirrors the Postgres partial unique index with
// a check-then-insert; the index remains the authoritative guard.
type Memory struct {
	*memstore.Store[*models.Key]
}

func NewMemory(opts ...memstore.Option[*models.Key]) *Memory {
	return &Memory{Store: memstore.New[*models.Key](kind, opts...)}
}

func (m *Memory) Create(ctx context.Context, k *models.Key) (*models.Key, error) {
	live, err := m.Store.ListByStateOlderThan(ctx, liveStates, farFuture())
	if err != nil {
		return nil, err
	}
	for _, existing := range live {
		if existing.Value == k.Value && existing.Type == k.Type {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"%s %s: a live key already exists for this value", kind, k.ID)
		}
	}
	return m.Store.Create(ctx, k)
}

func farFuture() time.Time {
	return time.Now().Add(100 * 365 * 24 * time.Hour)
}
