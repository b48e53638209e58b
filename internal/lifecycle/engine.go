package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pixcore/internal/events"
	"pixcore/internal/platform/metrics"
	dErrors "pixcore/pkg/domain-errors"
	"pixcore/pkg/platform/keylock"
)

// Engine executes commands against one entity family. All executions for
// the same entity id are serialized through the locker; different ids run
// concurrently.
type Engine[E Entity] struct {
	desc    Descriptor[E]
	repo    Repository[E]
	locker  keylock.Locker
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	gatewayTimeout time.Duration
	clock          func() time.Time
}

type Option[E Entity] func(*Engine[E])

func WithLogger[E Entity](logger *slog.Logger) Option[E] {
	return func(e *Engine[E]) { e.logger = logger }
}

func WithEmitter[E Entity](emitter events.Emitter) Option[E] {
	return func(e *Engine[E]) { e.emitter = emitter }
}

func WithMetrics[E Entity](m *metrics.Metrics) Option[E] {
	return func(e *Engine[E]) { e.metrics = m }
}

// WithGatewayTimeout bounds every registry call. A timeout is treated as a
// transient failure: nothing was committed, retry is safe.
func WithGatewayTimeout[E Entity](d time.Duration) Option[E] {
	return func(e *Engine[E]) { e.gatewayTimeout = d }
}

// WithClock injects a deterministic clock for tests.
func WithClock[E Entity](clock func() time.Time) Option[E] {
	return func(e *Engine[E]) { e.clock = clock }
}

// New constructs an Engine.
func New[E Entity](desc Descriptor[E], repo Repository[E], locker keylock.Locker, opts ...Option[E]) *Engine[E] {
	e := &Engine[E]{
		desc:           desc,
		repo:           repo,
		locker:         locker,
		emitter:        events.NewMemory(),
		logger:         slog.Default(),
		gatewayTimeout: 10 * time.Second,
		clock:          time.Now,
		tracer:         otel.Tracer("pixcore/lifecycle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecOption carries per-execution inputs.
type ExecOption func(*Change)

// WithReason records the business reason on the transition (cancellation
// reason, registry failure detail).
func WithReason(reason string) ExecOption {
	return func(ch *Change) { ch.Reason = reason }
}

// WithAttrs attaches command-specific fields consumed by Apply mutations.
func WithAttrs(attrs map[string]string) ExecOption {
	return func(ch *Change) { ch.Attrs = attrs }
}

// Execute loads the entity, validates the command against the family table
// and applies the transition. Redelivery of an already-applied command is a
// no-op: Result.Applied is false and no gateway call, write or event
// happens.
func (e *Engine[E]) Execute(ctx context.Context, id string, cmd Command, opts ...ExecOption) (Result[E], error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.execute", trace.WithAttributes(
		attribute.String("family", e.desc.Kind),
		attribute.String("command", string(cmd)),
		attribute.String("entity_id", id),
	))
	defer span.End()

	var res Result[E]
	err := e.locker.Do(ctx, e.desc.Kind+":"+id, func(ctx context.Context) error {
		var err error
		res, err = e.execute(ctx, id, cmd, opts)
		return err
	})
	return res, err
}

func (e *Engine[E]) execute(ctx context.Context, id string, cmd Command, opts []ExecOption) (Result[E], error) {
	var zero Result[E]

	ent, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}
	current := ent.GetMeta().State

	// At-least-once delivery: a command whose target the entity already
	// occupies was applied by an earlier delivery.
	for _, target := range e.desc.Targets(cmd) {
		if current == target {
			e.metrics.IncTransition(e.desc.Kind, string(cmd), metrics.OutcomeNoop)
			return Result[E]{Entity: ent, Applied: false}, nil
		}
	}

	tr, err := e.selectTransition(cmd, ent)
	if err != nil {
		e.metrics.IncTransition(e.desc.Kind, string(cmd), metrics.OutcomeRejected)
		return zero, err
	}

	ch := Change{Now: e.clock()}
	for _, opt := range opts {
		opt(&ch)
	}

	if tr.Call != nil && !tr.LocalFirst {
		if err := e.callGateway(ctx, cmd, tr, ent); err != nil {
			if dErrors.HasCode(err, dErrors.CodeGatewayPermanent) {
				return e.park(ctx, ent, err)
			}
			// Nothing committed; the caller redelivers.
			e.metrics.IncTransition(e.desc.Kind, string(cmd), metrics.OutcomeFailed)
			return zero, err
		}
	}

	tr.Apply(ent, ch)
	committed, err := e.commit(ctx, tr, ent)
	if err != nil {
		e.metrics.IncTransition(e.desc.Kind, string(cmd), metrics.OutcomeFailed)
		return zero, err
	}

	var callErr error
	if tr.Call != nil && tr.LocalFirst {
		// Explicit exception to call-before-commit: the external step is a
		// reporting side effect, the commit above stands either way.
		callErr = e.callGateway(ctx, cmd, tr, committed)
	}

	e.emit(ctx, tr.Event, committed)
	e.metrics.IncTransition(e.desc.Kind, string(cmd), metrics.OutcomeApplied)

	if callErr != nil {
		e.logger.WarnContext(ctx, "post-commit registry report failed",
			"family", e.desc.Kind,
			"entity_id", id,
			"command", cmd,
			"error", callErr,
		)
		return zero, callErr
	}
	return Result[E]{Entity: committed, Applied: true, Event: tr.Event}, nil
}

// Create persists a new entity built by the caller. Redelivery with an id
// that already exists returns the stored entity unchanged.
func (e *Engine[E]) Create(ctx context.Context, ent E) (Result[E], error) {
	id := ent.GetMeta().ID
	ctx, span := e.tracer.Start(ctx, "lifecycle.create", trace.WithAttributes(
		attribute.String("family", e.desc.Kind),
		attribute.String("entity_id", id),
	))
	defer span.End()

	var res Result[E]
	err := e.locker.Do(ctx, e.desc.Kind+":"+id, func(ctx context.Context) error {
		existing, err := e.repo.GetByID(ctx, id)
		if err == nil {
			e.metrics.IncTransition(e.desc.Kind, string(CommandCreate), metrics.OutcomeNoop)
			res = Result[E]{Entity: existing, Applied: false}
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}

		created, err := e.repo.Create(ctx, ent)
		if err != nil {
			e.metrics.IncTransition(e.desc.Kind, string(CommandCreate), metrics.OutcomeFailed)
			return err
		}
		e.emit(ctx, e.desc.CreatedEvent, created)
		e.metrics.IncTransition(e.desc.Kind, string(CommandCreate), metrics.OutcomeApplied)
		res = Result[E]{Entity: created, Applied: true, Event: e.desc.CreatedEvent}
		return nil
	})
	return res, err
}

// selectTransition picks the first edge accepting the current state whose
// guard passes. A matching edge with a failing guard surfaces the guard's
// error; no matching edge at all is an invalid-state failure.
func (e *Engine[E]) selectTransition(cmd Command, ent E) (Transition[E], error) {
	current := ent.GetMeta().State
	transitions, ok := e.desc.Commands[cmd]
	if !ok {
		return Transition[E]{}, dErrors.Newf(dErrors.CodeInvalidState,
			"%s %s: unknown command %q", e.desc.Kind, ent.GetMeta().ID, cmd)
	}

	var guardErr error
	for _, tr := range transitions {
		if !stateIn(current, tr.From) {
			continue
		}
		if tr.When != nil {
			if err := tr.When(ent); err != nil {
				if guardErr == nil {
					guardErr = err
				}
				continue
			}
		}
		return tr, nil
	}
	if guardErr != nil {
		return Transition[E]{}, guardErr
	}
	return Transition[E]{}, dErrors.Newf(dErrors.CodeInvalidState,
		"%s %s: command %q not allowed in state %q", e.desc.Kind, ent.GetMeta().ID, cmd, current)
}

func (e *Engine[E]) callGateway(ctx context.Context, cmd Command, tr Transition[E], ent E) error {
	callCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()

	start := time.Now()
	err := tr.Call(callCtx, ent)
	e.metrics.ObserveGatewayLatency(e.desc.Kind, time.Since(start).Seconds())

	switch {
	case err == nil:
		e.metrics.IncGatewayCall(e.desc.Kind, string(cmd), "ok")
		return nil
	case dErrors.HasCode(err, dErrors.CodeGatewayPermanent):
		e.metrics.IncGatewayCall(e.desc.Kind, string(cmd), "permanent")
		return err
	case dErrors.HasCode(err, dErrors.CodeGatewayTransient):
		e.metrics.IncGatewayCall(e.desc.Kind, string(cmd), "transient")
		return err
	default:
		// Timeouts and uncoded network errors are transient: no local
		// mutation has been committed.
		e.metrics.IncGatewayCall(e.desc.Kind, string(cmd), "transient")
		return dErrors.Wrap(err, dErrors.CodeGatewayTransient, "registry call failed")
	}
}

// park moves an entity to its ERROR state after a permanent registry
// rejection so an operator or compensating job can intervene, then returns
// the original error for dead-letter routing.
func (e *Engine[E]) park(ctx context.Context, ent E, cause error) (Result[E], error) {
	var zero Result[E]

	tr, selErr := e.selectTransition(CommandFail, ent)
	if selErr != nil {
		// No fail edge from this state; report the rejection untouched.
		e.logger.ErrorContext(ctx, "permanent registry rejection with no ERROR edge",
			"family", e.desc.Kind,
			"entity_id", ent.GetMeta().ID,
			"state", ent.GetMeta().State,
			"error", cause,
		)
		return zero, cause
	}

	tr.Apply(ent, Change{Now: e.clock(), Reason: cause.Error()})
	committed, err := e.commit(ctx, tr, ent)
	if err != nil {
		return zero, err
	}
	e.emit(ctx, tr.Event, committed)
	e.metrics.IncTransition(e.desc.Kind, string(CommandFail), metrics.OutcomeApplied)
	return zero, cause
}

func (e *Engine[E]) commit(ctx context.Context, tr Transition[E], ent E) (E, error) {
	if tr.Persist != nil {
		return tr.Persist(ctx, ent)
	}
	return e.repo.Update(ctx, ent)
}

// emit publishes the domain event. Failures are logged and swallowed: the
// committed state is the source of truth and event delivery is best-effort.
func (e *Engine[E]) emit(ctx context.Context, name string, ent E) {
	if name == "" {
		return
	}
	if err := e.emitter.Emit(ctx, name, ent); err != nil {
		e.metrics.IncEmitFailure(e.desc.Kind)
		e.logger.WarnContext(ctx, "event emission failed",
			"family", e.desc.Kind,
			"entity_id", ent.GetMeta().ID,
			"event", name,
			"error", err,
		)
	}
}

func stateIn(s State, set []State) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
