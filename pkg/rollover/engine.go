package rollover

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// TerminationReason tells why a chain walk stopped. It is informational, not an error.
type TerminationReason string

const (
	NextMonthMissing  TerminationReason = "next_month_missing"
	StartMonthMissing TerminationReason = "start_month_missing"
	HorizonReached    TerminationReason = "horizon_reached"
)

type ChainResult struct {
	Start         budget.Period
	Last          budget.Period
	MonthsVisited int
	MonthsUpdated int
	Terminated    TerminationReason
}

// MonthStore is the part of the budget repository the engine reads and writes.
type MonthStore interface {
	GetMonth(ctx context.Context, userId int, period budget.Period) (budget.Month, error)
	LockMonths(ctx context.Context, userId int, from budget.Period) error
	UpdateRollover(ctx context.Context, userId int, monthId int, actual decimal.Decimal) error
}

type Engine interface {
	// RecomputeChain walks forward from start, carrying each month's end balance into the next
	// month's actual rollover. A horizon <= 0 uses the configured default.
	RecomputeChain(ctx context.Context, userId int, start budget.Period, horizon int) (ChainResult, error)
}

type EngineImpl struct {
	store          MonthStore
	tx             database.Transactor
	defaultHorizon int
}

func NewEngine(store MonthStore, tx database.Transactor, defaultHorizon int) *EngineImpl {
	return &EngineImpl{store: store, tx: tx, defaultHorizon: defaultHorizon}
}

// EndBalance is the balance a month hands over to the next one.
func EndBalance(m budget.Month) decimal.Decimal {
	return m.RolloverActual.Add(budget.Summarize(m.Transactions).Net())
}

func (e *EngineImpl) RecomputeChain(ctx context.Context, userId int, start budget.Period, horizon int) (ChainResult, error) {
	if !start.Valid() {
		return ChainResult{}, fmt.Errorf("invalid start period %s", start)
	}
	if horizon <= 0 {
		horizon = e.defaultHorizon
	}

	result := ChainResult{Start: start, Last: start}
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		result = ChainResult{Start: start, Last: start}
		if err := e.store.LockMonths(ctx, userId, start); err != nil {
			return err
		}

		current, err := e.store.GetMonth(ctx, userId, start)
		if errors.Is(err, budget.ErrBudgetNotFound) {
			result.Terminated = StartMonthMissing
			return nil
		}
		if err != nil {
			return err
		}

		for step := 0; step < horizon; step++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.MonthsVisited++
			end := EndBalance(current)

			next, err := e.store.GetMonth(ctx, userId, current.Period.Next())
			if errors.Is(err, budget.ErrBudgetNotFound) {
				log.Infof("rollover chain for user %d stopped after %s, next month does not exist", userId, current.Period)
				result.Terminated = NextMonthMissing
				return nil
			}
			if err != nil {
				return err
			}

			if !next.RolloverActual.Equal(end) {
				log.Debugf("rollover %s: %s -> %s", next.Period, next.RolloverActual.StringFixed(2), end.StringFixed(2))
				if err := e.store.UpdateRollover(ctx, userId, next.Id, end); err != nil {
					return err
				}
				result.MonthsUpdated++
			}
			next.RolloverActual = end
			current = next
			result.Last = current.Period
		}
		result.Terminated = HorizonReached
		return nil
	})
	if err != nil {
		log.Errorf("rollover recompute from %s failed: %v", start, err)
		return ChainResult{}, err
	}
	return result, nil
}

// Subscribe recomputes the chain whenever a transaction changes.
func (e *EngineImpl) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.TransactionChangedEvent, func(ev event_bus.EventT[event_bus.TransactionChanged]) error {
		start := budget.Period{Month: ev.Data.Month, Year: ev.Data.Year}
		_, err := e.RecomputeChain(ev.Context(), ev.Data.UserId, start, 0)
		return err
	})
}
