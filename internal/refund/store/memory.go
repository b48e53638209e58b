// Package store persists refunds and their devolutions. Both backends
// commit the close transition and the devolution row atomically: the
// memory store under one lock, the Postgres store in one transaction.
package store

import (
	"context"

	"pixcore/internal/lifecycle/memstore"
	"pixcore/internal/refund/models"
	dErrors "pixcore/pkg/domain-errors"
)

// Memory is the in-memory refund store.
type Memory struct {
	*memstore.Store[*models.Refund]
	devolutions map[string]*models.Devolution
}

func NewMemory(opts ...memstore.Option[*models.Refund]) *Memory {
	return &Memory{
		Store:       memstore.New[*models.Refund](kind, opts...),
		devolutions: make(map[string]*models.Devolution),
	}
}

// CloseWithDevolution writes the refund transition and its devolution under
// one lock. The version check still applies; on conflict nothing is written.
func (m *Memory) CloseWithDevolution(ctx context.Context, r *models.Refund, d *models.Devolution) (*models.Refund, error) {
	if d == nil || d.ID == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "refund close requires a devolution")
	}

	var committed *models.Refund
	err := m.Store.WithLock(func(update func(*models.Refund) (*models.Refund, error)) error {
		updated, err := update(r)
		if err != nil {
			return err
		}
		dc := *d
		m.devolutions[dc.ID] = &dc
		committed = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// GetDevolution looks up a devolution by id.
func (m *Memory) GetDevolution(_ context.Context, id string) (*models.Devolution, error) {
	var out *models.Devolution
	err := m.Store.WithLock(func(func(*models.Refund) (*models.Refund, error)) error {
		d, ok := m.devolutions[id]
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "devolution %s not found", id)
		}
		dc := *d
		out = &dc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
