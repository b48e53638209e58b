package pixkey_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/dispatcher"
	"pixcore/internal/pixkey"
	"pixcore/internal/pixkey/models"
	dErrors "pixcore/pkg/domain-errors"
)

func TestKeyService(t *testing.T) {
	ctx := context.Background()

	createEnvelope := func() dispatcher.Envelope {
		return dispatcher.Envelope{
			Family:   pixkey.Kind,
			EntityID: "key-1",
			Command:  string(lifecycle.CommandCreate),
			Attributes: map[string]string{
				pixkey.AttrValue: "ana@example.com",
				pixkey.AttrType:  string(models.KeyTypeEmail),
				pixkey.AttrOwner: "owner-1",
			},
		}
	}

	t.Run("create registers a pending key", func(t *testing.T) {
		f := newKeyFixture(t)
		svc := pixkey.NewService(f.engine)

		require.NoError(t, svc.Execute(ctx, createEnvelope()))

		got, err := f.store.GetByID(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatePending, got.State)
		assert.Equal(t, "ana@example.com", got.Value)
		assert.Equal(t, models.KeyTypeEmail, got.Type)
		assert.Equal(t, "owner-1", got.OwnerID)
	})

	t.Run("create validates its attributes", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(env *dispatcher.Envelope)
		}{
			{"missing id", func(env *dispatcher.Envelope) { env.EntityID = "" }},
			{"missing value", func(env *dispatcher.Envelope) { delete(env.Attributes, pixkey.AttrValue) }},
			{"missing owner", func(env *dispatcher.Envelope) { delete(env.Attributes, pixkey.AttrOwner) }},
			{"unknown type", func(env *dispatcher.Envelope) { env.Attributes[pixkey.AttrType] = "cnpj" }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newKeyFixture(t)
				svc := pixkey.NewService(f.engine)

				env := createEnvelope()
				tc.mutate(&env)
				err := svc.Execute(ctx, env)
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

				_, err = f.store.GetByID(ctx, "key-1")
				assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
			})
		}
	})

	t.Run("reason threads through to the transition", func(t *testing.T) {
		f := newKeyFixture(t)
		svc := pixkey.NewService(f.engine)
		f.seed(t, models.StatePending, nil)

		err := svc.Execute(ctx, dispatcher.Envelope{
			Family:   pixkey.Kind,
			EntityID: "key-1",
			Command:  string(lifecycle.CommandCancel),
			Reason:   "owner_request",
		})
		require.NoError(t, err)

		got, err := f.store.GetByID(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, models.StateCanceled, got.State)
		assert.Equal(t, "owner_request", got.Reason)
	})
}
