package infraction

import (
	"context"
	"time"

	"pixcore/internal/infraction/models"
	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/dispatcher"
	dErrors "pixcore/pkg/domain-errors"
)

// Envelope attribute keys for infraction creation.
const (
	AttrOperationRef = "operationRef"
	AttrIssueRef     = "issueRef"
)

// Service adapts the infraction engine to the dispatcher.
type Service struct {
	engine *lifecycle.Engine[*models.Infraction]
	clock  func() time.Time
}

func NewService(engine *lifecycle.Engine[*models.Infraction]) *Service {
	return &Service{engine: engine, clock: time.Now}
}

// Execute implements dispatcher.Route.
func (s *Service) Execute(ctx context.Context, env dispatcher.Envelope) error {
	cmd := lifecycle.Command(env.Command)
	switch cmd {
	case lifecycle.CommandCreate:
		inf, err := s.buildInfraction(env)
		if err != nil {
			return err
		}
		_, err = s.engine.Create(ctx, inf)
		return err
	case CommandClose:
		// Reject before staging a close the registry can never confirm.
		if env.Attributes[AttrAnalysisResult] == "" {
			return dErrors.Newf(dErrors.CodeValidation,
				"infraction %s: analysis result required before close", env.EntityID)
		}
	}

	var opts []lifecycle.ExecOption
	if env.Reason != "" {
		opts = append(opts, lifecycle.WithReason(env.Reason))
	}
	if len(env.Attributes) > 0 {
		opts = append(opts, lifecycle.WithAttrs(env.Attributes))
	}
	_, err := s.engine.Execute(ctx, env.EntityID, cmd, opts...)
	return err
}

func (s *Service) buildInfraction(env dispatcher.Envelope) (*models.Infraction, error) {
	if env.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "infraction: entity id required")
	}
	opRef := env.Attributes[AttrOperationRef]
	if opRef == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"infraction %s: operation reference required", env.EntityID)
	}
	return models.NewInfraction(env.EntityID, opRef, env.Attributes[AttrIssueRef], s.clock()), nil
}
