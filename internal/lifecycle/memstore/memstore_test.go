package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/memstore"
	dErrors "pixcore/pkg/domain-errors"
)

const (
	stateOpen   lifecycle.State = "OPEN"
	stateClosed lifecycle.State = "CLOSED"
)

type widget struct {
	lifecycle.Meta
	Label string
}

func (w *widget) Clone() *widget {
	clone := *w
	return &clone
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create assigns version and timestamps", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store := memstore.New("widget", memstore.WithClock[*widget](func() time.Time { return now }))

		created, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)
		assert.Equal(t, now, created.CreatedAt)
		assert.Equal(t, now, created.UpdatedAt)
	})

	t.Run("create rejects duplicate id", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		_, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}})
		require.NoError(t, err)

		_, err = store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		_, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}, Label: "original"})
		require.NoError(t, err)

		got, err := store.GetByID(ctx, "w-1")
		require.NoError(t, err)
		got.Label = "mutated"

		again, err := store.GetByID(ctx, "w-1")
		require.NoError(t, err)
		assert.Equal(t, "original", again.Label)
	})

	t.Run("get unknown id", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		_, err := store.GetByID(ctx, "missing")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("update bumps version", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		created, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}})
		require.NoError(t, err)

		created.State = stateClosed
		updated, err := store.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, stateClosed, updated.State)
	})

	t.Run("update rejects stale version", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		created, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}})
		require.NoError(t, err)

		stale := created.Clone()
		created.State = stateClosed
		_, err = store.Update(ctx, created)
		require.NoError(t, err)

		stale.Label = "lost write"
		_, err = store.Update(ctx, stale)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Contains(t, err.Error(), "version 1 is stale")
	})

	t.Run("update unknown id", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		_, err := store.Update(ctx, &widget{Meta: lifecycle.Meta{ID: "missing", Version: 1}})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("list filters on state and age", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store := memstore.New("widget", memstore.WithClock[*widget](func() time.Time { return at }))

		seed := func(id string, state lifecycle.State, age time.Duration) {
			saved := at
			at = at.Add(-age)
			_, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: id, State: state}})
			require.NoError(t, err)
			at = saved
		}
		seed("open-old", stateOpen, 2*time.Hour)
		seed("open-new", stateOpen, 5*time.Minute)
		seed("closed-old", stateClosed, 2*time.Hour)

		cutoff := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
		matched, err := store.ListByStateOlderThan(ctx, []lifecycle.State{stateOpen}, cutoff)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, "open-old", matched[0].ID)
	})

	t.Run("with lock commits through the version check", func(t *testing.T) {
		store := memstore.New[*widget]("widget")
		created, err := store.Create(ctx, &widget{Meta: lifecycle.Meta{ID: "w-1", State: stateOpen}})
		require.NoError(t, err)

		err = store.WithLock(func(update func(*widget) (*widget, error)) error {
			created.State = stateClosed
			_, uerr := update(created)
			return uerr
		})
		require.NoError(t, err)

		got, err := store.GetByID(ctx, "w-1")
		require.NoError(t, err)
		assert.Equal(t, stateClosed, got.State)
		assert.Equal(t, int64(2), got.Version)
	})
}
