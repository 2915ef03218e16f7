package goal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrGoalNotFound   = errors.New("goal not found")
	ErrGoalNotReached = errors.New("goal target not reached")
	ErrInvalidGoal    = errors.New("invalid goal")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusFulfilled Status = "fulfilled"
	StatusArchived  Status = "archived"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusFulfilled, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidGoal, s)
	}
}

type Goal struct {
	Id            int
	UserId        int
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Status        Status
}

// canMoveTo checks a status transition. Fulfilling requires the target to be reached.
func (g Goal) canMoveTo(status Status) error {
	if status == StatusFulfilled && g.Status != StatusFulfilled && g.CurrentAmount.LessThan(g.TargetAmount) {
		return fmt.Errorf("%w: %s of %s saved", ErrGoalNotReached, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
	}
	return nil
}
