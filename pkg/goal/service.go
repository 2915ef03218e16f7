package goal

import (
	"context"
	"fmt"
	"strings"

	"github.com/fintrack/fintrack/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	CreateGoal(ctx context.Context, g Goal) (Goal, error)
	ListGoals(ctx context.Context) ([]Goal, error)
	SetStatus(ctx context.Context, id int, status Status) (Goal, error)
	// Contribute moves the saved amount of a goal. Used by transactions linked to the goal.
	Contribute(ctx context.Context, id int, delta decimal.Decimal) error
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) CreateGoal(ctx context.Context, g Goal) (Goal, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Goal{}, fmt.Errorf("failed to get current user: %w", err)
	}
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return Goal{}, fmt.Errorf("%w: name is required", ErrInvalidGoal)
	}
	if !g.TargetAmount.IsPositive() {
		return Goal{}, fmt.Errorf("%w: target must be positive", ErrInvalidGoal)
	}
	if g.CurrentAmount.IsNegative() {
		return Goal{}, fmt.Errorf("%w: saved amount cannot be negative", ErrInvalidGoal)
	}
	g.Status = StatusActive
	return s.repo.Create(ctx, userId, g)
}

func (s *ServiceImpl) ListGoals(ctx context.Context) ([]Goal, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId)
}

func (s *ServiceImpl) SetStatus(ctx context.Context, id int, status Status) (Goal, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Goal{}, fmt.Errorf("failed to get current user: %w", err)
	}
	g, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return Goal{}, err
	}
	if err := g.canMoveTo(status); err != nil {
		return Goal{}, err
	}
	if err := s.repo.UpdateStatus(ctx, userId, id, status); err != nil {
		return Goal{}, err
	}
	g.Status = status
	return g, nil
}

func (s *ServiceImpl) Contribute(ctx context.Context, id int, delta decimal.Decimal) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	g, err := s.repo.AddToCurrent(ctx, userId, id, delta)
	if err != nil {
		return err
	}
	log.Debugf("goal %d now at %s of %s", g.Id, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
	return nil
}
