// Package models defines the Pix key entity and its state vocabulary.
package models

import (
	"time"

	"pixcore/internal/lifecycle"
)

type KeyType string

const (
	KeyTypePhone    KeyType = "phone"
	KeyTypeEmail    KeyType = "email"
	KeyTypeDocument KeyType = "document"
	KeyTypeRandom   KeyType = "random"
)

type ClaimKind string

const (
	ClaimOwnership   ClaimKind = "ownership"
	ClaimPortability ClaimKind = "portability"
)

// Key lifecycle states. DELETED and CANCELED are terminal; ERROR is a
// recoverable retry source for confirm and cancel commands.
const (
	StatePending            lifecycle.State = "PENDING"
	StateReady              lifecycle.State = "READY"
	StateOwnershipPending   lifecycle.State = "OWNERSHIP_PENDING"
	StatePortabilityPending lifecycle.State = "PORTABILITY_PENDING"
	StateClaimPending       lifecycle.State = "CLAIM_PENDING"
	StateDeleting           lifecycle.State = "DELETING"
	StateDeleted            lifecycle.State = "DELETED"
	StateCanceled           lifecycle.State = "CANCELED"
	StateError              lifecycle.State = "ERROR"
)

// ClaimStates are the states the expiration sweeper watches.
var ClaimStates = []lifecycle.State{
	StateOwnershipPending,
	StatePortabilityPending,
	StateClaimPending,
}

// Claim is the pending-window sub-record. It exists exactly while the key
// sits in one of the claim-pending states: ExpiresAt is stamped on entry
// and the whole record cleared on exit.
type Claim struct {
	Kind        ClaimKind
	Inbound     bool
	RequestedAt time.Time
	ExpiresAt   time.Time
}

// Key is one claimable Pix identifier. At most one key with a non-terminal
// state may exist per (Value, Type) pair; the stores enforce it.
type Key struct {
	lifecycle.Meta
	Value     string
	Type      KeyType
	OwnerID   string
	Reason    string
	Claim     *Claim
	DeletedAt *time.Time
}

// NewKey builds a key in PENDING awaiting registry confirmation.
func NewKey(id, value string, keyType KeyType, ownerID string, now time.Time) *Key {
	return &Key{
		Meta: lifecycle.Meta{
			ID:        id,
			State:     StatePending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Value:   value,
		Type:    keyType,
		OwnerID: ownerID,
	}
}

// HasOpenClaim reports whether a claim window is currently open. A claim
// record whose ExpiresAt has been cleared is historical, not open.
func (k *Key) HasOpenClaim() bool {
	return k.Claim != nil && !k.Claim.ExpiresAt.IsZero()
}

func (k *Key) Clone() *Key {
	clone := *k
	if k.Claim != nil {
		claim := *k.Claim
		clone.Claim = &claim
	}
	if k.DeletedAt != nil {
		t := *k.DeletedAt
		clone.DeletedAt = &t
	}
	return &clone
}
