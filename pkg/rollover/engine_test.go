package rollover

import (
	"context"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userId = 1

func setupEngine(horizon int) (*EngineImpl, *budget.StubBudgetRepo) {
	repo := budget.NewStubBudgetRepo()
	return NewEngine(repo, database.NoopTransactor{}, horizon), repo
}

func tx(kind budget.Kind, category string, actual int64, period budget.Period) budget.Transaction {
	return budget.Transaction{
		Name:     category,
		Category: category,
		Kind:     kind,
		Actual:   decimal.NewFromInt(actual),
		Date:     time.Date(period.Year, time.Month(period.Month), 10, 0, 0, 0, 0, time.UTC),
	}
}

func month(period budget.Period, rollover int64, transactions ...budget.Transaction) budget.Month {
	return budget.Month{UserId: userId, Period: period, RolloverActual: decimal.NewFromInt(rollover), Transactions: transactions}
}

func rolloverOf(t *testing.T, repo *budget.StubBudgetRepo, period budget.Period) decimal.Decimal {
	t.Helper()
	m, err := repo.GetMonth(context.Background(), userId, period)
	require.NoError(t, err)
	return m.RolloverActual
}

func TestEngineImpl_RecomputeChain(t *testing.T) {
	march := budget.Period{Month: 3, Year: 2024}
	april := march.Next()
	may := april.Next()

	t.Run("should carry the end balance into the next month", func(t *testing.T) {
		// given
		engine, repo := setupEngine(36)
		repo.PutMonth(month(march, 0,
			tx(budget.KindIncome, "Salary", 1000, march),
			tx(budget.KindExpense, "Food", 400, march),
			tx(budget.KindExpense, budget.CategorySavings, 100, march),
			tx(budget.KindTransfer, "Savings", 300, march),
		))
		repo.PutMonth(month(april, 0))

		// when
		result, err := engine.RecomputeChain(context.Background(), userId, march, 0)

		// then
		require.NoError(t, err)
		assert.True(t, rolloverOf(t, repo, april).Equal(decimal.NewFromInt(500)))
		assert.Equal(t, 2, result.MonthsVisited)
		assert.Equal(t, 1, result.MonthsUpdated)
		assert.Equal(t, NextMonthMissing, result.Terminated)
		assert.Equal(t, april, result.Last)
	})

	t.Run("should propagate through every following month", func(t *testing.T) {
		// given
		engine, repo := setupEngine(36)
		repo.PutMonth(month(march, 100, tx(budget.KindIncome, "Salary", 50, march)))
		repo.PutMonth(month(april, 999, tx(budget.KindExpense, "Rent", 30, april)))
		repo.PutMonth(month(may, 0))

		// when
		_, err := engine.RecomputeChain(context.Background(), userId, march, 0)

		// then
		require.NoError(t, err)
		assert.True(t, rolloverOf(t, repo, april).Equal(decimal.NewFromInt(150)))
		assert.True(t, rolloverOf(t, repo, may).Equal(decimal.NewFromInt(120)))
	})

	t.Run("should be idempotent", func(t *testing.T) {
		// given
		engine, repo := setupEngine(36)
		repo.PutMonth(month(march, 0, tx(budget.KindIncome, "Salary", 10, march)))
		repo.PutMonth(month(april, 0))
		_, err := engine.RecomputeChain(context.Background(), userId, march, 0)
		require.NoError(t, err)
		callsAfterFirstRun := repo.RolloverCalls

		// when
		result, err := engine.RecomputeChain(context.Background(), userId, march, 0)

		// then
		require.NoError(t, err)
		assert.Equal(t, 0, result.MonthsUpdated)
		assert.Equal(t, callsAfterFirstRun, repo.RolloverCalls)
		assert.True(t, rolloverOf(t, repo, april).Equal(decimal.NewFromInt(10)))
	})

	t.Run("should stop at a gap without creating months", func(t *testing.T) {
		// given
		engine, repo := setupEngine(36)
		repo.PutMonth(month(march, 0, tx(budget.KindIncome, "Salary", 10, march)))
		repo.PutMonth(month(may, 0))

		// when
		result, err := engine.RecomputeChain(context.Background(), userId, march, 0)

		// then
		require.NoError(t, err)
		assert.Equal(t, NextMonthMissing, result.Terminated)
		assert.True(t, rolloverOf(t, repo, may).IsZero())
		_, err = repo.GetMonth(context.Background(), userId, april)
		assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
	})

	t.Run("should stop at the horizon", func(t *testing.T) {
		// given
		engine, repo := setupEngine(2)
		p := march
		for i := 0; i < 5; i++ {
			repo.PutMonth(month(p, 0, tx(budget.KindIncome, "Salary", 1, p)))
			p = p.Next()
		}

		// when
		result, err := engine.RecomputeChain(context.Background(), userId, march, 0)

		// then
		require.NoError(t, err)
		assert.Equal(t, HorizonReached, result.Terminated)
		assert.Equal(t, 2, result.MonthsVisited)
		assert.True(t, rolloverOf(t, repo, may).Equal(decimal.NewFromInt(2)))
		assert.True(t, rolloverOf(t, repo, may.Next()).IsZero())
	})

	t.Run("should cross the year boundary", func(t *testing.T) {
		// given
		engine, repo := setupEngine(36)
		december := budget.Period{Month: 12, Year: 2023}
		repo.PutMonth(month(december, 5, tx(budget.KindIncome, "Salary", 5, december)))
		repo.PutMonth(month(budget.Period{Month: 1, Year: 2024}, 0))

		// when
		_, err := engine.RecomputeChain(context.Background(), userId, december, 0)

		// then
		require.NoError(t, err)
		assert.True(t, rolloverOf(t, repo, budget.Period{Month: 1, Year: 2024}).Equal(decimal.NewFromInt(10)))
	})

	t.Run("should report a missing start month", func(t *testing.T) {
		// given
		engine, _ := setupEngine(36)

		// when
		result, err := engine.RecomputeChain(context.Background(), userId, march, 0)

		// then
		require.NoError(t, err)
		assert.Equal(t, StartMonthMissing, result.Terminated)
		assert.Zero(t, result.MonthsVisited)
	})
}

func TestEngineImpl_Subscribe(t *testing.T) {
	// given
	engine, repo := setupEngine(36)
	march := budget.Period{Month: 3, Year: 2024}
	repo.PutMonth(month(march, 0, tx(budget.KindIncome, "Salary", 70, march)))
	repo.PutMonth(month(march.Next(), 0))
	bus := event_bus.NewEventBus()
	engine.Subscribe(bus)

	// when
	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.TransactionChangedEvent,
		event_bus.TransactionChanged{UserId: userId, Month: 3, Year: 2024}))

	// then
	require.NoError(t, err)
	assert.True(t, rolloverOf(t, repo, march.Next()).Equal(decimal.NewFromInt(70)))
}
