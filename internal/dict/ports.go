// Package dict defines the ports to the external key registry (DICT/PSP).
// These are hexagonal architecture ports: the lifecycle descriptors depend
// on these interfaces and adapters (HTTP client, mocks) implement them.
//
// This keeps the engine independent of:
// - the registry's wire protocol and auth
// - connection pooling and retry policy (the adapter's concern)
// - external service locations
//
// Every call is a network operation that may fail independently of local
// state. Adapters classify failures with domain-error codes: transient
// (network, 5xx, timeout) vs permanent (request rejected as malformed).
package dict

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import "context"

type ConfirmEntryRequest struct {
	KeyID    string
	KeyValue string
	KeyType  string
	OwnerID  string
}

type DeleteEntryRequest struct {
	KeyID    string
	KeyValue string
	KeyType  string
	Reason   string
}

type ClaimRequest struct {
	KeyID     string
	KeyValue  string
	KeyType   string
	ClaimKind string
}

// KeyGateway covers entry registration and claim coordination.
type KeyGateway interface {
	ConfirmEntry(ctx context.Context, req ConfirmEntryRequest) error
	DeleteEntry(ctx context.Context, req DeleteEntryRequest) error
	CreateClaim(ctx context.Context, req ClaimRequest) error
	CancelClaim(ctx context.Context, req ClaimRequest) error
	ConfirmClaim(ctx context.Context, req ClaimRequest) error
	GetEntryStatus(ctx context.Context, keyID string) (string, error)
}

type InfractionReport struct {
	InfractionID string
	OperationRef string
	IssueRef     string
}

type InfractionClosure struct {
	InfractionID    string
	AnalysisResult  string
	AnalysisDetails string
}

// InfractionGateway reports infraction lifecycle changes to the registry.
type InfractionGateway interface {
	ReportInfraction(ctx context.Context, req InfractionReport) error
	AcknowledgeInfraction(ctx context.Context, infractionID string) error
	CloseInfraction(ctx context.Context, req InfractionClosure) error
	CancelInfraction(ctx context.Context, infractionID string) error
	GetInfractionStatus(ctx context.Context, infractionID string) (string, error)
}

type RefundClosure struct {
	RefundID        string
	SolicitationRef string
	DevolutionID    string
	Amount          int64
}

type RefundCancellation struct {
	RefundID        string
	SolicitationRef string
	Reason          string
}

// RefundGateway reports refund resolutions to the registry.
type RefundGateway interface {
	CloseRefund(ctx context.Context, req RefundClosure) error
	CancelRefund(ctx context.Context, req RefundCancellation) error
	GetRefundStatus(ctx context.Context, refundID string) (string, error)
}
