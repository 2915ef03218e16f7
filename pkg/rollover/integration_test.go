package rollover

import (
	"context"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionChangesRecomputeFollowingMonths(t *testing.T) {
	// given
	ctx := user.WithId(context.Background(), userId)
	clock := &utils.MockClock{FixedNow: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)}
	bus := event_bus.NewEventBus()
	auditRepo := audit.NewStubRepository()
	auditService := audit.NewService(auditRepo, bus, clock)
	ledger := wallet.NewLedger(wallet.NewStubRepository(auditRepo), auditService, clock)
	repo := budget.NewStubBudgetRepo()
	service := budget.NewService(repo, database.NoopTransactor{}, ledger, nil, auditService, bus)
	NewEngine(repo, database.NoopTransactor{}, 36).Subscribe(bus)

	march := budget.Period{Month: 3, Year: 2024}
	april := march.Next()
	_, err := repo.GetOrCreateMonth(ctx, userId, april)
	require.NoError(t, err)
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

	// when
	for _, transaction := range []budget.Transaction{
		{Name: "Salary", Category: "Salary", Kind: budget.KindIncome, Actual: decimal.NewFromInt(1000), Date: day},
		{Name: "Food", Category: "Food", Kind: budget.KindExpense, Actual: decimal.NewFromInt(400), Date: day},
		{Name: "Put aside", Category: budget.CategorySavings, Kind: budget.KindExpense, Actual: decimal.NewFromInt(100), Date: day},
	} {
		_, err := service.AddTransaction(ctx, transaction)
		require.NoError(t, err)
	}

	// then
	next, err := repo.GetMonth(ctx, userId, april)
	require.NoError(t, err)
	assert.True(t, next.RolloverActual.Equal(decimal.NewFromInt(500)), "rollover was %s", next.RolloverActual)
}
