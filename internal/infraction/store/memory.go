// Package store persists infraction reports.
package store

import (
	"pixcore/internal/infraction/models"
	"pixcore/internal/lifecycle/memstore"
)

const kind = "infraction"

// NewMemory builds the in-memory infraction repository.
func NewMemory(opts ...memstore.Option[*models.Infraction]) *memstore.Store[*models.Infraction] {
	return memstore.New[*models.Infraction](kind, opts...)
}
