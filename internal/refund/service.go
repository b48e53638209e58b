package refund

import (
	"context"
	"strconv"
	"time"

	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/dispatcher"
	"pixcore/internal/refund/models"
	dErrors "pixcore/pkg/domain-errors"
)

// Envelope attribute keys for refund creation.
const (
	AttrSolicitationRef = "solicitationRef"
	AttrAmount          = "amountCents"
)

// Service adapts the refund engine to the dispatcher and the sweeper.
type Service struct {
	engine *lifecycle.Engine[*models.Refund]
	clock  func() time.Time
}

func NewService(engine *lifecycle.Engine[*models.Refund]) *Service {
	return &Service{engine: engine, clock: time.Now}
}

// Execute implements dispatcher.Route.
func (s *Service) Execute(ctx context.Context, env dispatcher.Envelope) error {
	cmd := lifecycle.Command(env.Command)
	if cmd == lifecycle.CommandCreate {
		r, err := s.buildRefund(env)
		if err != nil {
			return err
		}
		_, err = s.engine.Create(ctx, r)
		return err
	}

	var opts []lifecycle.ExecOption
	if env.Reason != "" {
		opts = append(opts, lifecycle.WithReason(env.Reason))
	}
	_, err := s.engine.Execute(ctx, env.EntityID, cmd, opts...)
	return err
}

// ExecuteExpire implements sweeper.Executor.
func (s *Service) ExecuteExpire(ctx context.Context, id string) error {
	_, err := s.engine.Execute(ctx, id, lifecycle.CommandExpire,
		lifecycle.WithReason("solicitation_expired"))
	return err
}

func (s *Service) buildRefund(env dispatcher.Envelope) (*models.Refund, error) {
	if env.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "refund: entity id required")
	}
	ref := env.Attributes[AttrSolicitationRef]
	if ref == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"refund %s: solicitation reference required", env.EntityID)
	}
	amount, err := strconv.ParseInt(env.Attributes[AttrAmount], 10, 64)
	if err != nil || amount <= 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"refund %s: amount must be a positive integer in cents", env.EntityID)
	}
	return models.NewRefund(env.EntityID, ref, amount, s.clock()), nil
}
