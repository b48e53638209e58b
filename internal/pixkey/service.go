package pixkey

import (
	"context"
	"time"

	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/dispatcher"
	"pixcore/internal/pixkey/models"
	dErrors "pixcore/pkg/domain-errors"
)

// Envelope attribute keys for key creation.
const (
	AttrValue = "value"
	AttrType  = "type"
	AttrOwner = "ownerId"
)

// Service adapts the Pix key engine to the dispatcher and the sweeper.
type Service struct {
	engine *lifecycle.Engine[*models.Key]
	clock  func() time.Time
}

func NewService(engine *lifecycle.Engine[*models.Key]) *Service {
	return &Service{engine: engine, clock: time.Now}
}

// Execute implements dispatcher.Route.
func (s *Service) Execute(ctx context.Context, env dispatcher.Envelope) error {
	cmd := lifecycle.Command(env.Command)
	if cmd == lifecycle.CommandCreate {
		key, err := s.buildKey(env)
		if err != nil {
			return err
		}
		_, err = s.engine.Create(ctx, key)
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
	_, err := s.engine.Execute(ctx, id, lifecycle.CommandExpire)
	return err
}

func (s *Service) buildKey(env dispatcher.Envelope) (*models.Key, error) {
	if env.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "pix key: entity id required")
	}
	value := env.Attributes[AttrValue]
	if value == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation, "pix key %s: key value required", env.EntityID)
	}
	owner := env.Attributes[AttrOwner]
	if owner == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation, "pix key %s: owner id required", env.EntityID)
	}
	keyType := models.KeyType(env.Attributes[AttrType])
	switch keyType {
	case models.KeyTypePhone, models.KeyTypeEmail, models.KeyTypeDocument, models.KeyTypeRandom:
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "pix key %s: unknown key type %q", env.EntityID, keyType)
	}
	return models.NewKey(env.EntityID, value, keyType, owner, s.clock()), nil
}
