// Package infraction binds the infraction family to the lifecycle engine.
//
// Status transitions happen in two phases: a request command stages the new
// business status locally (*_PENDING), then the registry-confirm command
// performs the gateway call for that status and lands in *_CONFIRMED. ERROR
// keeps the staged status, which is how a retried confirm finds its edge.
package infraction

import (
	"context"

	"pixcore/internal/dict"
	"pixcore/internal/infraction/models"
	"pixcore/internal/lifecycle"
	dErrors "pixcore/pkg/domain-errors"
)

const Kind = "infraction"

const (
	CommandAcknowledge lifecycle.Command = "acknowledge_requested"
	CommandClose       lifecycle.Command = "close_requested"
)

// Attribute keys accepted by CommandClose.
const (
	AttrAnalysisResult  = "analysisResult"
	AttrAnalysisDetails = "analysisDetails"
)

const (
	EventInfractionCreated      = "infraction_created"
	EventInfractionOpened       = "infraction_opened"
	EventInfractionAckStaged    = "infraction_acknowledge_requested"
	EventInfractionAcknowledged = "infraction_acknowledged"
	EventInfractionCloseStaged  = "infraction_close_requested"
	EventInfractionClosed       = "infraction_closed"
	EventInfractionCancelStaged = "infraction_cancel_requested"
	EventInfractionCancelled    = "infraction_cancelled"
	EventInfractionFailed       = "infraction_failed"
)

// NewDescriptor builds the infraction family table.
func NewDescriptor(gw dict.InfractionGateway) lifecycle.Descriptor[*models.Infraction] {
	nonTerminal := []lifecycle.State{
		models.StateOpenPending, models.StateOpenConfirmed,
		models.StateAckPending, models.StateAckConfirmed,
		models.StateClosedPending, models.StateCancelPending,
	}

	stage := func(status models.Status, state lifecycle.State) func(*models.Infraction, lifecycle.Change) {
		return func(i *models.Infraction, ch lifecycle.Change) {
			i.Status = status
			i.State = state
			if ch.Reason != "" {
				i.Reason = ch.Reason
			}
		}
	}

	return lifecycle.Descriptor[*models.Infraction]{
		Kind:         Kind,
		CreatedEvent: EventInfractionCreated,
		Commands: map[lifecycle.Command][]lifecycle.Transition[*models.Infraction]{
			lifecycle.CommandConfirm: {
				{
					From: []lifecycle.State{models.StateOpenPending, models.StateError},
					To:   models.StateOpenConfirmed,
					When: statusIs(models.StatusOpen),
					Call: func(ctx context.Context, i *models.Infraction) error {
						return gw.ReportInfraction(ctx, dict.InfractionReport{
							InfractionID: i.ID,
							OperationRef: i.OperationRef,
							IssueRef:     i.IssueRef,
						})
					},
					Apply: confirm(models.StateOpenConfirmed),
					Event: EventInfractionOpened,
				},
				{
					From: []lifecycle.State{models.StateAckPending, models.StateError},
					To:   models.StateAckConfirmed,
					When: statusIs(models.StatusAcknowledged),
					Call: func(ctx context.Context, i *models.Infraction) error {
						return gw.AcknowledgeInfraction(ctx, i.ID)
					},
					Apply: confirm(models.StateAckConfirmed),
					Event: EventInfractionAcknowledged,
				},
				{
					From: []lifecycle.State{models.StateClosedPending, models.StateError},
					To:   models.StateClosedConfirmed,
					When: closable,
					Call: func(ctx context.Context, i *models.Infraction) error {
						return gw.CloseInfraction(ctx, dict.InfractionClosure{
							InfractionID:    i.ID,
							AnalysisResult:  i.AnalysisResult,
							AnalysisDetails: i.AnalysisDetails,
						})
					},
					Apply: confirm(models.StateClosedConfirmed),
					Event: EventInfractionClosed,
				},
				{
					From: []lifecycle.State{models.StateCancelPending, models.StateError},
					To:   models.StateCancelConfirmed,
					When: statusIs(models.StatusCancelled),
					Call: func(ctx context.Context, i *models.Infraction) error {
						return gw.CancelInfraction(ctx, i.ID)
					},
					Apply: confirm(models.StateCancelConfirmed),
					Event: EventInfractionCancelled,
				},
			},
			CommandAcknowledge: {
				{
					From:  []lifecycle.State{models.StateOpenConfirmed},
					To:    models.StateAckPending,
					Apply: stage(models.StatusAcknowledged, models.StateAckPending),
					Event: EventInfractionAckStaged,
				},
			},
			CommandClose: {
				{
					From: []lifecycle.State{models.StateOpenConfirmed, models.StateAckConfirmed},
					To:   models.StateClosedPending,
					Apply: func(i *models.Infraction, ch lifecycle.Change) {
						i.AnalysisResult = ch.Attr(AttrAnalysisResult)
						i.AnalysisDetails = ch.Attr(AttrAnalysisDetails)
						i.Status = models.StatusClosed
						i.State = models.StateClosedPending
					},
					Event: EventInfractionCloseStaged,
				},
			},
			lifecycle.CommandCancel: {
				{
					From: []lifecycle.State{
						models.StateOpenPending, models.StateOpenConfirmed,
						models.StateAckPending, models.StateAckConfirmed,
						models.StateError,
					},
					To:    models.StateCancelPending,
					Apply: stage(models.StatusCancelled, models.StateCancelPending),
					Event: EventInfractionCancelStaged,
				},
			},
			lifecycle.CommandFail: {
				{
					From: nonTerminal,
					To:   models.StateError,
					Apply: func(i *models.Infraction, ch lifecycle.Change) {
						i.State = models.StateError
						i.Reason = ch.Reason
					},
					Event: EventInfractionFailed,
				},
			},
		},
	}
}

func confirm(state lifecycle.State) func(*models.Infraction, lifecycle.Change) {
	return func(i *models.Infraction, _ lifecycle.Change) {
		i.State = state
		i.Reason = ""
	}
}

func statusIs(status models.Status) func(*models.Infraction) error {
	return func(i *models.Infraction) error {
		if i.Status != status {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"%s %s: status %q does not match staged %q transition", Kind, i.ID, i.Status, status)
		}
		return nil
	}
}

// closable requires the analysis result before any close reaches the
// registry: a CLOSED status is never confirmed without it.
func closable(i *models.Infraction) error {
	if i.Status != models.StatusClosed {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"%s %s: status %q does not match staged CLOSED transition", Kind, i.ID, i.Status)
	}
	if i.AnalysisResult == "" {
		return dErrors.Newf(dErrors.CodeValidation,
			"%s %s: analysis result required before close", Kind, i.ID)
	}
	return nil
}

