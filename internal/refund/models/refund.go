// Package models defines the refund entity and its devolution sub-entity.
package models

import (
	"time"

	"pixcore/internal/lifecycle"
)

// Status follows the registry vocabulary for refund solicitations.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

// Engine states. CLOSED_WAITING means the devolution exists and money is
// moving back; it is entered local-first, before the registry report.
const (
	StateOpenPending     lifecycle.State = "OPEN_PENDING"
	StateOpenConfirmed   lifecycle.State = "OPEN_CONFIRMED"
	StateClosedPending   lifecycle.State = "CLOSED_PENDING"
	StateClosedWaiting   lifecycle.State = "CLOSED_WAITING"
	StateClosedConfirmed lifecycle.State = "CLOSED_CONFIRMED"
	StateCancelPending   lifecycle.State = "CANCEL_PENDING"
	StateCancelConfirmed lifecycle.State = "CANCEL_CONFIRMED"
	StateError           lifecycle.State = "ERROR"
)

// Refund tracks a registry-issued refund solicitation. Amount is in
// centavos; integer arithmetic avoids rounding drift on money.
type Refund struct {
	lifecycle.Meta
	SolicitationRef string
	Status          Status
	Amount          int64
	RejectionReason string
	DevolutionID    string
}

// Devolution is created when a refund closes and funds must move back. It
// is written in the same transaction as the refund state change.
type Devolution struct {
	ID        string
	RefundID  string
	Amount    int64
	CreatedAt time.Time
}

// NewRefund builds a refund staged as OPEN awaiting confirmation.
func NewRefund(id, solicitationRef string, amount int64, now time.Time) *Refund {
	return &Refund{
		Meta: lifecycle.Meta{
			ID:        id,
			State:     StateOpenPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		SolicitationRef: solicitationRef,
		Status:          StatusOpen,
		Amount:          amount,
	}
}

func (r *Refund) Clone() *Refund {
	clone := *r
	return &clone
}
