// Package lifecycle implements the transition engine shared by the Pix key,
// infraction and refund families. A family supplies a Descriptor (its
// transition table plus registry bindings) and a Repository; the engine
// owns ordering, idempotency, precondition checks, commit and event
// emission.
package lifecycle

import (
	"context"
	"time"
)

// State is an engine-internal state. Each family defines its own vocabulary
// as typed constants over this type.
type State string

// Command is a triggering event for a transition. The closed base set is
// below; families add staging commands (open claim, acknowledge, close)
// under the same type.
type Command string

const (
	CommandCreate  Command = "create_requested"
	CommandConfirm Command = "confirmed_by_registry"
	CommandCancel  Command = "cancel_requested"
	CommandExpire  Command = "expired"
	CommandFail    Command = "failed_at_registry"
)

// Meta carries the identity, state and optimistic-concurrency fields every
// lifecycle entity embeds. Stores bump Version on each write and reject
// stale versions with a conflict.
type Meta struct {
	ID        string
	State     State
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meta returns the embedded metadata; embedding promotes this so every
// entity satisfies Entity for free.
func (m *Meta) GetMeta() *Meta { return m }

// Entity is anything the engine can move through a lifecycle.
type Entity interface {
	GetMeta() *Meta
}

// Cloneable entities can be deep-copied. The engine snapshots an entity
// before applying a local-first transition so the post-commit registry
// report is built from the pre-transition fields.
type Cloneable[E any] interface {
	Entity
	Clone() E
}

// Change carries the inputs an Apply mutation may use. Reason is set for
// cancellations, failures and expirations; Attrs carries command-specific
// fields such as the analysis result on an infraction close.
type Change struct {
	Now    time.Time
	Reason string
	Attrs  map[string]string
}

// Attr returns the named command attribute, or "" when absent.
func (ch Change) Attr(key string) string { return ch.Attrs[key] }

// Repository is the state store contract. Implementations must enforce
// per-write version checks so a stale read never overwrites a newer write.
type Repository[E Entity] interface {
	GetByID(ctx context.Context, id string) (E, error)
	Create(ctx context.Context, e E) (E, error)
	Update(ctx context.Context, e E) (E, error)
	ListByStateOlderThan(ctx context.Context, states []State, cutoff time.Time) ([]E, error)
}

// Result reports the outcome of an execution. Applied is false when the
// entity was already settled in the command's target state and the call was
// an idempotent no-op: no gateway call, no write, no event.
type Result[E Entity] struct {
	Entity  E
	Applied bool
	Event   string
}

// Transition is one allowed edge of a family's table. The engine picks the
// first edge whose From set contains the current state and whose guard
// accepts the entity.
type Transition[E Entity] struct {
	// From is the accepted-source-state set. ERROR appears here wherever a
	// prior attempt failed after the status intent was staged, so retries
	// can re-enter.
	From []State
	// To is the target state; the union of a command's targets is its
	// idempotency set.
	To State
	// When guards edges that share source states (for example ERROR retries
	// resolved by business status). Returning an error rejects the edge; a
	// coded error aborts edge selection and is returned to the caller.
	When func(e E) error
	// Call invokes the registry gateway. Nil for local-only transitions.
	Call func(ctx context.Context, e E) error
	// LocalFirst commits the local mutation before issuing Call. Reserved
	// for transitions where the external call is a reporting side effect,
	// not a correctness precondition (refund close, claim completion).
	LocalFirst bool
	// Apply mutates the entity into the target state.
	Apply func(e E, ch Change)
	// Persist overrides the default Repository.Update commit. The refund
	// close uses this to write the refund and its devolution atomically.
	Persist func(ctx context.Context, e E) (E, error)
	// Event is the domain event name emitted after commit.
	Event string
}

// Descriptor parameterizes the engine for one entity family.
type Descriptor[E Entity] struct {
	// Kind names the family in errors, locks, metrics and spans.
	Kind string
	// Commands is the transition table.
	Commands map[Command][]Transition[E]
	// CreatedEvent is emitted after a successful create.
	CreatedEvent string
}

// Targets returns the idempotency set for cmd.
func (d *Descriptor[E]) Targets(cmd Command) []State {
	var out []State
	for _, tr := range d.Commands[cmd] {
		out = append(out, tr.To)
	}
	return out
}
