// Package dispatcher routes bus messages to the per-family engines. It
// owns the retry decision: transient failures propagate so the transport
// redelivers, permanent failures go to the dead-letter topic and the
// offset commits.
package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"

	"pixcore/internal/platform/kafka"
	"pixcore/internal/platform/metrics"
	dErrors "pixcore/pkg/domain-errors"
)

// Envelope is the typed command carried by every inbound bus message.
// Attributes carries creation fields for CreateRequested commands.
type Envelope struct {
	Family     string            `json:"family"`
	EntityID   string            `json:"entityId"`
	Command    string            `json:"command"`
	Reason     string            `json:"reason,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Route executes one family's commands.
type Route interface {
	Execute(ctx context.Context, env Envelope) error
}

// DeadLetterer records a message that must not be retried.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg *kafka.Message, cause error) error
}

type Dispatcher struct {
	routes  map[string]Route
	dlq     DeadLetterer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(dlq DeadLetterer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		routes: make(map[string]Route),
		dlq:    dlq,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a family route.
func (d *Dispatcher) Register(family string, route Route) {
	d.routes[family] = route
}

// Handle implements kafka.Handler. A nil return commits the offset; an
// error signals the transport to redeliver.
func (d *Dispatcher) Handle(ctx context.Context, msg *kafka.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		d.logger.ErrorContext(ctx, "malformed command payload",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return d.toDeadLetter(ctx, msg, "", dErrors.Wrap(err, dErrors.CodeValidation, "malformed command payload"))
	}

	route, ok := d.routes[env.Family]
	if !ok {
		return d.toDeadLetter(ctx, msg, env.Family,
			dErrors.Newf(dErrors.CodeValidation, "unknown entity family %q", env.Family))
	}

	err := route.Execute(ctx, env)
	if err == nil {
		return nil
	}
	if dErrors.Retryable(err) {
		return err
	}

	d.logger.ErrorContext(ctx, "permanent command failure",
		"family", env.Family,
		"entity_id", env.EntityID,
		"command", env.Command,
		"code", dErrors.CodeOf(err),
		"error", err,
	)
	return d.toDeadLetter(ctx, msg, env.Family, err)
}

// toDeadLetter parks the message. If the dead-letter write itself fails
// the original error is returned so the message redelivers rather than
// vanishing.
func (d *Dispatcher) toDeadLetter(ctx context.Context, msg *kafka.Message, family string, cause error) error {
	if family == "" {
		family = "unknown"
	}
	if err := d.dlq.DeadLetter(ctx, msg, cause); err != nil {
		d.logger.ErrorContext(ctx, "dead-letter write failed",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return cause
	}
	d.metrics.IncDeadLetter(family, string(dErrors.CodeOf(cause)))
	return nil
}
