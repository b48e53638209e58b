// Package pixkey binds the Pix key family to the lifecycle engine: its
// transition table, registry calls and event names.
package pixkey

import (
	"context"
	"time"

	"pixcore/internal/dict"
	"pixcore/internal/lifecycle"
	"pixcore/internal/pixkey/models"
	dErrors "pixcore/pkg/domain-errors"
)

const Kind = "pix_key"

// Family commands beyond the shared base set. Claim openings and deletions
// arrive as separate use-case messages in the original system; they feed
// the same engine here.
const (
	CommandOpenOwnershipClaim   lifecycle.Command = "open_ownership_claim"
	CommandOpenPortabilityClaim lifecycle.Command = "open_portability_claim"
	CommandClaimReceived        lifecycle.Command = "claim_received"
	CommandCompleteClaim        lifecycle.Command = "complete_claim"
	CommandDelete               lifecycle.Command = "delete_requested"
)

// Domain event names.
const (
	EventKeyCreated                = "key_created"
	EventKeyConfirmed              = "key_confirmed"
	EventKeyCanceled               = "key_canceled"
	EventKeyDeleting               = "key_deleting"
	EventKeyDeleted                = "key_deleted"
	EventKeyFailed                 = "key_failed"
	EventOwnershipClaimOpened      = "ownership_claim_opened"
	EventPortabilityClaimOpened    = "portability_claim_opened"
	EventClaimReceived             = "claim_received"
	EventClaimCanceled             = "claim_canceled"
	EventClaimCompleted            = "claim_completed"
	EventPendingExpired            = "key_pending_expired"
	EventOwnershipPendingExpired   = "ownership_pending_expired"
	EventPortabilityPendingExpired = "portability_pending_expired"
	EventClaimPendingExpired       = "claim_pending_expired"
)

// Windows carries the per-claim-kind pending durations, injected from
// configuration.
type Windows struct {
	Ownership   time.Duration
	Portability time.Duration
	Inbound     time.Duration
}

// NewDescriptor builds the key family table.
//
// ERROR appears as a retry source on confirm and cancel: a prior attempt
// failed after partial local mutation but before registry confirmation, so
// redelivery must be able to re-enter.
func NewDescriptor(gw dict.KeyGateway, windows Windows) lifecycle.Descriptor[*models.Key] {
	nonTerminal := []lifecycle.State{
		models.StatePending, models.StateReady,
		models.StateOwnershipPending, models.StatePortabilityPending, models.StateClaimPending,
		models.StateDeleting,
	}

	openClaim := func(kind models.ClaimKind, inbound bool, window time.Duration) func(*models.Key, lifecycle.Change) {
		return func(k *models.Key, ch lifecycle.Change) {
			k.State = claimState(kind, inbound)
			k.Claim = &models.Claim{
				Kind:        kind,
				Inbound:     inbound,
				RequestedAt: ch.Now,
				ExpiresAt:   ch.Now.Add(window),
			}
		}
	}

	return lifecycle.Descriptor[*models.Key]{
		Kind:         Kind,
		CreatedEvent: EventKeyCreated,
		Commands: map[lifecycle.Command][]lifecycle.Transition[*models.Key]{
			lifecycle.CommandConfirm: {
				{
					From: []lifecycle.State{models.StatePending, models.StateError},
					To:   models.StateReady,
					When: noOpenClaim,
					Call: func(ctx context.Context, k *models.Key) error {
						return gw.ConfirmEntry(ctx, dict.ConfirmEntryRequest{
							KeyID:    k.ID,
							KeyValue: k.Value,
							KeyType:  string(k.Type),
							OwnerID:  k.OwnerID,
						})
					},
					Apply: func(k *models.Key, _ lifecycle.Change) {
						k.State = models.StateReady
						k.Reason = ""
					},
					Event: EventKeyConfirmed,
				},
				{
					From: []lifecycle.State{models.StateDeleting},
					To:   models.StateDeleted,
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateDeleted
						at := ch.Now
						k.DeletedAt = &at
					},
					Event: EventKeyDeleted,
				},
			},
			CommandOpenOwnershipClaim: {
				{
					From:  []lifecycle.State{models.StateReady},
					To:    models.StateOwnershipPending,
					Call:  claimCall(gw.CreateClaim, models.ClaimOwnership),
					Apply: openClaim(models.ClaimOwnership, false, windows.Ownership),
					Event: EventOwnershipClaimOpened,
				},
			},
			CommandOpenPortabilityClaim: {
				{
					From:  []lifecycle.State{models.StateReady},
					To:    models.StatePortabilityPending,
					Call:  claimCall(gw.CreateClaim, models.ClaimPortability),
					Apply: openClaim(models.ClaimPortability, false, windows.Portability),
					Event: EventPortabilityClaimOpened,
				},
			},
			CommandClaimReceived: {
				// Registry-initiated: another institution opened a claim on
				// this key, nothing to report back.
				{
					From:  []lifecycle.State{models.StateReady},
					To:    models.StateClaimPending,
					Apply: openClaim(models.ClaimOwnership, true, windows.Inbound),
					Event: EventClaimReceived,
				},
			},
			lifecycle.CommandCancel: {
				{
					From: []lifecycle.State{
						models.StateOwnershipPending, models.StatePortabilityPending,
						models.StateClaimPending, models.StateError,
					},
					To:   models.StateReady,
					When: openClaimRequired,
					Call: func(ctx context.Context, k *models.Key) error {
						return gw.CancelClaim(ctx, claimRequest(k))
					},
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateReady
						k.Claim = nil
						k.Reason = ch.Reason
					},
					Event: EventClaimCanceled,
				},
				{
					// Registration rejected before confirmation.
					From: []lifecycle.State{models.StatePending},
					To:   models.StateCanceled,
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateCanceled
						k.Reason = ch.Reason
					},
					Event: EventKeyCanceled,
				},
			},
			CommandCompleteClaim: {
				// The claim settled at the registry and the key left this
				// owner. Local commit first: the registry already decided,
				// our confirm call is a reporting side effect.
				{
					From: []lifecycle.State{
						models.StateOwnershipPending, models.StatePortabilityPending,
						models.StateClaimPending, models.StateError,
					},
					To:         models.StateCanceled,
					When:       openClaimRequired,
					LocalFirst: true,
					Call: func(ctx context.Context, k *models.Key) error {
						return gw.ConfirmClaim(ctx, claimRequest(k))
					},
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateCanceled
						// Keep the claim kind for the registry report; the
						// window itself is closed.
						k.Claim.ExpiresAt = time.Time{}
						k.Reason = "claim_completed"
					},
					Event: EventClaimCompleted,
				},
			},
			CommandDelete: {
				{
					From: []lifecycle.State{models.StateReady},
					To:   models.StateDeleting,
					Call: func(ctx context.Context, k *models.Key) error {
						return gw.DeleteEntry(ctx, dict.DeleteEntryRequest{
							KeyID:    k.ID,
							KeyValue: k.Value,
							KeyType:  string(k.Type),
							Reason:   k.Reason,
						})
					},
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateDeleting
						k.Reason = ch.Reason
					},
					Event: EventKeyDeleting,
				},
			},
			lifecycle.CommandExpire: {
				{
					From: []lifecycle.State{models.StatePending},
					To:   models.StateCanceled,
					Apply: func(k *models.Key, _ lifecycle.Change) {
						k.State = models.StateCanceled
						k.Reason = "registration_expired"
					},
					Event: EventPendingExpired,
				},
				{
					// Portability request lapsed; the key keeps working.
					From: []lifecycle.State{models.StatePortabilityPending},
					To:   models.StateReady,
					Apply: func(k *models.Key, _ lifecycle.Change) {
						k.State = models.StateReady
						k.Claim = nil
						k.Reason = "portability_expired"
					},
					Event: EventPortabilityPendingExpired,
				},
				{
					// The thirty-day ownership window elapsing completes the
					// claim against the current holder.
					From: []lifecycle.State{models.StateOwnershipPending},
					To:   models.StateDeleted,
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateDeleted
						k.Claim = nil
						k.Reason = "ownership_expired"
						at := ch.Now
						k.DeletedAt = &at
					},
					Event: EventOwnershipPendingExpired,
				},
				{
					From: []lifecycle.State{models.StateClaimPending},
					To:   models.StateDeleted,
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateDeleted
						k.Claim = nil
						k.Reason = "claim_expired"
						at := ch.Now
						k.DeletedAt = &at
					},
					Event: EventClaimPendingExpired,
				},
			},
			lifecycle.CommandFail: {
				{
					From: nonTerminal,
					To:   models.StateError,
					Apply: func(k *models.Key, ch lifecycle.Change) {
						k.State = models.StateError
						k.Reason = ch.Reason
					},
					Event: EventKeyFailed,
				},
			},
		},
	}
}

// noOpenClaim rejects the entry-confirm edge for ERROR keys whose failure
// happened inside a claim window; those retry through the claim commands.
func noOpenClaim(k *models.Key) error {
	if k.HasOpenClaim() {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"%s %s: claim window open, entry confirm not applicable", Kind, k.ID)
	}
	return nil
}

func openClaimRequired(k *models.Key) error {
	if !k.HasOpenClaim() {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"%s %s: no open claim to resolve", Kind, k.ID)
	}
	return nil
}

func claimState(kind models.ClaimKind, inbound bool) lifecycle.State {
	if inbound {
		return models.StateClaimPending
	}
	if kind == models.ClaimPortability {
		return models.StatePortabilityPending
	}
	return models.StateOwnershipPending
}

func claimRequest(k *models.Key) dict.ClaimRequest {
	req := dict.ClaimRequest{
		KeyID:    k.ID,
		KeyValue: k.Value,
		KeyType:  string(k.Type),
	}
	if k.Claim != nil {
		req.ClaimKind = string(k.Claim.Kind)
	}
	return req
}

func claimCall(call func(context.Context, dict.ClaimRequest) error, kind models.ClaimKind) func(context.Context, *models.Key) error {
	return func(ctx context.Context, k *models.Key) error {
		return call(ctx, dict.ClaimRequest{
			KeyID:     k.ID,
			KeyValue:  k.Value,
			KeyType:   string(k.Type),
			ClaimKind: string(kind),
		})
	}
}
