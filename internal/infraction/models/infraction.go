// Package models defines the infraction report entity.
package models

import (
	"time"

	"pixcore/internal/lifecycle"
)

// Status is the business status as reported to the registry.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusClosed       Status = "CLOSED"
	StatusCancelled    Status = "CANCELLED"
)

// Engine states track whether the registry confirmed the current Status
// transition: each status has a *_PENDING (staged locally) and a
// *_CONFIRMED (registry acknowledged) variant.
const (
	StateOpenPending      lifecycle.State = "OPEN_PENDING"
	StateOpenConfirmed    lifecycle.State = "OPEN_CONFIRMED"
	StateAckPending       lifecycle.State = "ACK_PENDING"
	StateAckConfirmed     lifecycle.State = "ACK_CONFIRMED"
	StateClosedPending    lifecycle.State = "CLOSED_PENDING"
	StateClosedConfirmed  lifecycle.State = "CLOSED_CONFIRMED"
	StateCancelPending    lifecycle.State = "CANCEL_PENDING"
	StateCancelConfirmed  lifecycle.State = "CANCEL_CONFIRMED"
	StateError            lifecycle.State = "ERROR"
)

// Infraction is a reported payment-fraud or rule-violation case. Status is
// never CLOSED without AnalysisResult populated; the close guard enforces
// it before any registry call.
type Infraction struct {
	lifecycle.Meta
	OperationRef    string
	Status          Status
	AnalysisResult  string
	AnalysisDetails string
	IssueRef        string
	Reason          string
}

// NewInfraction builds an infraction staged as OPEN awaiting registry
// confirmation.
func NewInfraction(id, operationRef, issueRef string, now time.Time) *Infraction {
	return &Infraction{
		Meta: lifecycle.Meta{
			ID:        id,
			State:     StateOpenPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		OperationRef: operationRef,
		Status:       StatusOpen,
		IssueRef:     issueRef,
	}
}

func (i *Infraction) Clone() *Infraction {
	clone := *i
	return &clone
}
