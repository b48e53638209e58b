// Package refund binds the refund family to the lifecycle engine.
//
// The close confirmation is the documented local-first exception: the
// devolution is created and the refund committed to CLOSED_WAITING before
// the registry report goes out, because the report is a side effect and the
// money movement must not wait on it.
package refund

import (
	"context"

	"github.com/google/uuid"

	"pixcore/internal/dict"
	"pixcore/internal/lifecycle"
	"pixcore/internal/refund/models"
	dErrors "pixcore/pkg/domain-errors"
)

const Kind = "refund"

const (
	CommandClose             lifecycle.Command = "close_requested"
	CommandDevolutionSettled lifecycle.Command = "devolution_settled"
)

const (
	EventRefundCreated      = "refund_created"
	EventRefundConfirmed    = "refund_confirmed"
	EventRefundCloseStaged  = "refund_close_requested"
	EventRefundClosed       = "refund_closed"
	EventRefundSettled      = "refund_settled"
	EventRefundCancelStaged = "refund_cancel_requested"
	EventRefundCancelled    = "refund_cancelled"
	EventRefundFailed       = "refund_failed"
)

// Store extends the repository with the one multi-entity write in the
// system: the refund state change and its devolution committed atomically.
type Store interface {
	lifecycle.Repository[*models.Refund]
	CloseWithDevolution(ctx context.Context, r *models.Refund, d *models.Devolution) (*models.Refund, error)
}

// NewDescriptor builds the refund family table.
func NewDescriptor(gw dict.RefundGateway, store Store) lifecycle.Descriptor[*models.Refund] {
	nonTerminal := []lifecycle.State{
		models.StateOpenPending, models.StateOpenConfirmed,
		models.StateClosedPending, models.StateClosedWaiting,
		models.StateCancelPending,
	}

	return lifecycle.Descriptor[*models.Refund]{
		Kind:         Kind,
		CreatedEvent: EventRefundCreated,
		Commands: map[lifecycle.Command][]lifecycle.Transition[*models.Refund]{
			lifecycle.CommandConfirm: {
				{
					// The solicitation came from the registry; accepting it
					// is local only.
					From: []lifecycle.State{models.StateOpenPending},
					To:   models.StateOpenConfirmed,
					Apply: func(r *models.Refund, _ lifecycle.Change) {
						r.State = models.StateOpenConfirmed
					},
					Event: EventRefundConfirmed,
				},
				{
					From:       []lifecycle.State{models.StateClosedPending, models.StateError},
					To:         models.StateClosedWaiting,
					When:       statusIs(models.StatusClosed),
					LocalFirst: true,
					Call: func(ctx context.Context, r *models.Refund) error {
						return gw.CloseRefund(ctx, dict.RefundClosure{
							RefundID:        r.ID,
							SolicitationRef: r.SolicitationRef,
							DevolutionID:    r.DevolutionID,
							Amount:          r.Amount,
						})
					},
					Apply: func(r *models.Refund, ch lifecycle.Change) {
						r.State = models.StateClosedWaiting
						r.DevolutionID = uuid.NewString()
					},
					Persist: func(ctx context.Context, r *models.Refund) (*models.Refund, error) {
						return store.CloseWithDevolution(ctx, r, &models.Devolution{
							ID:        r.DevolutionID,
							RefundID:  r.ID,
							Amount:    r.Amount,
							CreatedAt: r.UpdatedAt,
						})
					},
					Event: EventRefundClosed,
				},
				{
					From: []lifecycle.State{models.StateCancelPending, models.StateError},
					To:   models.StateCancelConfirmed,
					When: statusIs(models.StatusCancelled),
					Call: func(ctx context.Context, r *models.Refund) error {
						return gw.CancelRefund(ctx, dict.RefundCancellation{
							RefundID:        r.ID,
							SolicitationRef: r.SolicitationRef,
							Reason:          r.RejectionReason,
						})
					},
					Apply: func(r *models.Refund, _ lifecycle.Change) {
						r.State = models.StateCancelConfirmed
					},
					Event: EventRefundCancelled,
				},
			},
			CommandClose: {
				{
					From: []lifecycle.State{models.StateOpenConfirmed},
					To:   models.StateClosedPending,
					Apply: func(r *models.Refund, _ lifecycle.Change) {
						r.Status = models.StatusClosed
						r.State = models.StateClosedPending
					},
					Event: EventRefundCloseStaged,
				},
			},
			CommandDevolutionSettled: {
				{
					From: []lifecycle.State{models.StateClosedWaiting},
					To:   models.StateClosedConfirmed,
					Apply: func(r *models.Refund, _ lifecycle.Change) {
						r.State = models.StateClosedConfirmed
					},
					Event: EventRefundSettled,
				},
			},
			lifecycle.CommandCancel: {
				// Once a devolution exists money is moving; CLOSED_WAITING
				// refunds are not cancellable.
				{
					From: []lifecycle.State{
						models.StateOpenPending, models.StateOpenConfirmed, models.StateError,
					},
					To:    models.StateCancelPending,
					Apply: cancelStage,
					Event: EventRefundCancelStaged,
				},
			},
			lifecycle.CommandExpire: {
				{
					From: []lifecycle.State{models.StateOpenPending},
					To:   models.StateCancelPending,
					Apply: func(r *models.Refund, ch lifecycle.Change) {
						cancelStage(r, lifecycle.Change{Now: ch.Now, Reason: "solicitation_expired"})
					},
					Event: EventRefundCancelStaged,
				},
			},
			lifecycle.CommandFail: {
				{
					From: nonTerminal,
					To:   models.StateError,
					Apply: func(r *models.Refund, ch lifecycle.Change) {
						r.State = models.StateError
						r.RejectionReason = ch.Reason
					},
					Event: EventRefundFailed,
				},
			},
		},
	}
}

func cancelStage(r *models.Refund, ch lifecycle.Change) {
	r.Status = models.StatusCancelled
	r.State = models.StateCancelPending
	if ch.Reason != "" {
		r.RejectionReason = ch.Reason
	}
}

func statusIs(status models.Status) func(*models.Refund) error {
	return func(r *models.Refund) error {
		if r.Status != status {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"%s %s: status %q does not match staged %q transition", Kind, r.ID, r.Status, status)
		}
		return nil
	}
}
