package refund_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pixcore/internal/dict"
	"pixcore/internal/dict/mocks"
	"pixcore/internal/events"
	"pixcore/internal/lifecycle"
	"pixcore/internal/refund"
	"pixcore/internal/refund/models"
	"pixcore/internal/refund/store"
	dErrors "pixcore/pkg/domain-errors"
	"pixcore/pkg/platform/keylock"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type refundFixture struct {
	engine  *lifecycle.Engine[*models.Refund]
	store   *store.Memory
	gateway *mocks.MockRefundGateway
	emitter *events.Memory
}

func newRefundFixture(t *testing.T) *refundFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockRefundGateway(ctrl)
	st := store.NewMemory()
	emitter := events.NewMemory()
	engine := lifecycle.New(
		refund.NewDescriptor(gw, st), st, keylock.NewMutex(),
		lifecycle.WithEmitter[*models.Refund](emitter),
		lifecycle.WithClock[*models.Refund](func() time.Time { return testNow }),
	)
	return &refundFixture{engine: engine, store: st, gateway: gw, emitter: emitter}
}

func (f *refundFixture) seed(t *testing.T, state lifecycle.State, status models.Status) *models.Refund {
	t.Helper()
	r := models.NewRefund("ref-1", "sol-1", 12500, testNow)
	r.State = state
	r.Status = status
	created, err := f.store.Create(context.Background(), r)
	require.NoError(t, err)
	return created
}

func TestRefundLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("open solicitation confirms locally", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateOpenPending, models.StatusOpen)

		res, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandConfirm)
		require.NoError(t, err)
		assert.Equal(t, models.StateOpenConfirmed, res.Entity.State)
	})

	t.Run("close stages then confirm creates the devolution", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateOpenConfirmed, models.StatusOpen)

		res, err := f.engine.Execute(ctx, "ref-1", refund.CommandClose)
		require.NoError(t, err)
		assert.Equal(t, models.StateClosedPending, res.Entity.State)
		assert.Equal(t, models.StatusClosed, res.Entity.Status)

		var reported dict.RefundClosure
		f.gateway.EXPECT().CloseRefund(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req dict.RefundClosure) error {
				reported = req
				return nil
			})

		res, err = f.engine.Execute(ctx, "ref-1", lifecycle.CommandConfirm)
		require.NoError(t, err)
		assert.Equal(t, models.StateClosedWaiting, res.Entity.State)
		require.NotEmpty(t, res.Entity.DevolutionID)

		// The devolution was committed with the refund and the report
		// carried its id and amount.
		d, err := f.store.GetDevolution(ctx, res.Entity.DevolutionID)
		require.NoError(t, err)
		assert.Equal(t, "ref-1", d.RefundID)
		assert.Equal(t, int64(12500), d.Amount)
		assert.Equal(t, res.Entity.DevolutionID, reported.DevolutionID)
		assert.Equal(t, int64(12500), reported.Amount)
	})

	t.Run("devolution exists even when the report fails", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateClosedPending, models.StatusClosed)
		f.gateway.EXPECT().CloseRefund(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeGatewayTransient, "registry unreachable"))

		_, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandConfirm)
		require.Error(t, err)
		assert.True(t, dErrors.Retryable(err))

		stored, err := f.store.GetByID(ctx, "ref-1")
		require.NoError(t, err)
		assert.Equal(t, models.StateClosedWaiting, stored.State)
		_, err = f.store.GetDevolution(ctx, stored.DevolutionID)
		require.NoError(t, err)

		// Redelivery: already settled, no second devolution or report.
		res, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandConfirm)
		require.NoError(t, err)
		assert.False(t, res.Applied)
	})

	t.Run("settled devolution completes the refund", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateClosedWaiting, models.StatusClosed)

		res, err := f.engine.Execute(ctx, "ref-1", refund.CommandDevolutionSettled)
		require.NoError(t, err)
		assert.Equal(t, models.StateClosedConfirmed, res.Entity.State)
	})

	t.Run("cancel stages and confirms at the registry", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateOpenConfirmed, models.StatusOpen)

		res, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandCancel,
			lifecycle.WithReason("out of scope"))
		require.NoError(t, err)
		assert.Equal(t, models.StateCancelPending, res.Entity.State)
		assert.Equal(t, "out of scope", res.Entity.RejectionReason)

		f.gateway.EXPECT().CancelRefund(gomock.Any(), dict.RefundCancellation{
			RefundID:        "ref-1",
			SolicitationRef: "sol-1",
			Reason:          "out of scope",
		}).Return(nil)

		res, err = f.engine.Execute(ctx, "ref-1", lifecycle.CommandConfirm)
		require.NoError(t, err)
		assert.Equal(t, models.StateCancelConfirmed, res.Entity.State)
	})

	t.Run("close-waiting refund cannot be cancelled", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateClosedWaiting, models.StatusClosed)

		_, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandCancel)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("expired solicitation stages a cancellation", func(t *testing.T) {
		f := newRefundFixture(t)
		f.seed(t, models.StateOpenPending, models.StatusOpen)

		res, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandExpire)
		require.NoError(t, err)
		assert.Equal(t, models.StateCancelPending, res.Entity.State)
		assert.Equal(t, "solicitation_expired", res.Entity.RejectionReason)
	})

	t.Run("ERROR retry resolves by staged status", func(t *testing.T) {
		f := newRefundFixture(t)
		r := f.seed(t, models.StateError, models.StatusCancelled)
		r.RejectionReason = "registry 502"

		f.gateway.EXPECT().CancelRefund(gomock.Any(), gomock.Any()).Return(nil)

		res, err := f.engine.Execute(ctx, "ref-1", lifecycle.CommandConfirm)
		require.NoError(t, err)
		assert.Equal(t, models.StateCancelConfirmed, res.Entity.State)
	})
}
