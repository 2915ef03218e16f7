package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/fintrack/fintrack/pkg/rollover"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userId = 1

var now = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	oracle     *OracleImpl
	ledger     *wallet.LedgerImpl
	walletRepo *wallet.StubRepository
	budgetRepo *budget.StubBudgetRepo
	budgets    *budget.ServiceImpl
	ctx        context.Context
}

func setup() *fixture {
	clock := &utils.MockClock{FixedNow: now}
	bus := event_bus.NewEventBus()
	auditRepo := audit.NewStubRepository()
	auditService := audit.NewService(auditRepo, bus, clock)
	f := &fixture{
		walletRepo: wallet.NewStubRepository(auditRepo),
		budgetRepo: budget.NewStubBudgetRepo(),
		ctx:        user.WithId(context.Background(), userId),
	}
	f.ledger = wallet.NewLedger(f.walletRepo, auditService, clock)
	f.budgets = budget.NewService(f.budgetRepo, database.NoopTransactor{}, f.ledger, nil, auditService, bus)
	rollover.NewEngine(f.budgetRepo, database.NoopTransactor{}, 36).Subscribe(bus)
	f.oracle = NewOracle(f.ledger, f.budgets, auditService, clock)
	return f
}

func (f *fixture) wallet(t *testing.T, name string, initial int64) wallet.Wallet {
	t.Helper()
	w, err := f.ledger.CreateWallet(f.ctx, wallet.Wallet{Name: name, Type: wallet.TypeCash, InitialBalance: decimal.NewFromInt(initial)})
	require.NoError(t, err)
	return w
}

func (f *fixture) transaction(t *testing.T, name string, kind budget.Kind, amount int64, walletId *int) {
	t.Helper()
	_, err := f.budgets.AddTransaction(f.ctx, budget.Transaction{
		Name:     name,
		Category: name,
		Kind:     kind,
		Actual:   decimal.NewFromInt(amount),
		Date:     time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		WalletId: walletId,
	})
	require.NoError(t, err)
}

func TestOracleImpl_Diagnose(t *testing.T) {
	t.Run("should explain the discrepancy with initial balances", func(t *testing.T) {
		// given
		f := setup()
		cash := f.wallet(t, "Cash", 100)
		f.wallet(t, "Bank", 400)
		f.transaction(t, "Salary", budget.KindIncome, 50, &cash.Id)
		f.transaction(t, "Food", budget.KindExpense, 30, &cash.Id)

		// when
		report, err := f.oracle.Diagnose(context.Background(), userId)

		// then
		require.NoError(t, err)
		assert.True(t, report.TotalWalletBalance.Equal(decimal.NewFromInt(520)), "total was %s", report.TotalWalletBalance)
		assert.True(t, report.NetFlow.Equal(decimal.NewFromInt(20)), "net flow was %s", report.NetFlow)
		assert.True(t, report.Discrepancy.Equal(decimal.NewFromInt(500)), "discrepancy was %s", report.Discrepancy)
		assert.True(t, report.UnexplainedDrift.IsZero())
		assert.False(t, report.Drift)
		assert.Equal(t, 2, report.WalletCount)
		assert.Equal(t, 2, report.TransactionCount)
		assert.Equal(t, now, report.GeneratedAt)
		require.Len(t, report.Wallets, 2)
		for _, check := range report.Wallets {
			assert.True(t, check.Complete, "wallet %s", check.Name)
		}
	})

	t.Run("should leave transfers out of the net flow", func(t *testing.T) {
		// given
		f := setup()
		cash := f.wallet(t, "Cash", 100)
		bank := f.wallet(t, "Bank", 0)
		_, err := f.budgets.AddTransaction(f.ctx, budget.Transaction{
			Name: "Move", Category: budget.CategoryTransfer, Kind: budget.KindTransfer, Actual: decimal.NewFromInt(60),
			Date: now, WalletId: &cash.Id, ToWalletId: &bank.Id,
		})
		require.NoError(t, err)

		// when
		report, err := f.oracle.Diagnose(context.Background(), userId)

		// then
		require.NoError(t, err)
		assert.True(t, report.NetFlow.IsZero())
		assert.True(t, report.Discrepancy.Equal(decimal.NewFromInt(100)))
		assert.False(t, report.Drift)
	})

	t.Run("should report drift when a balance moved outside the ledger", func(t *testing.T) {
		// given
		f := setup()
		cash := f.wallet(t, "Cash", 100)
		cash.Balance = decimal.NewFromInt(175)
		f.walletRepo.Put(cash)

		// when
		report, err := f.oracle.Diagnose(context.Background(), userId)

		// then
		require.NoError(t, err)
		assert.True(t, report.Drift)
		assert.True(t, report.UnexplainedDrift.Equal(decimal.NewFromInt(75)), "drift was %s", report.UnexplainedDrift)
		require.Len(t, report.Wallets, 1)
		assert.False(t, report.Wallets[0].Complete)
		assert.Equal(t, 1, report.IncompleteWallets())
	})

	t.Run("should only look at the given user", func(t *testing.T) {
		// given
		f := setup()
		f.wallet(t, "Cash", 100)

		// when
		report, err := f.oracle.Diagnose(context.Background(), 2)

		// then
		require.NoError(t, err)
		assert.Equal(t, 0, report.WalletCount)
		assert.True(t, report.Discrepancy.IsZero())
	})
}

type failingWallets struct{}

func (failingWallets) ListWallets(ctx context.Context) ([]wallet.Wallet, error) {
	return nil, errors.New("connection reset")
}

func TestReport_RepairIncludesInitialBalances(t *testing.T) {
	tests := []struct {
		name        string
		discrepancy int64
		initial     int64
		want        bool
	}{
		{name: "opening balances only", discrepancy: 100, initial: 100, want: true},
		{name: "missing income without opening balances", discrepancy: 40, initial: 0, want: false},
		{name: "nothing to repair", discrepancy: -20, initial: 50, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Report{
				Discrepancy:      decimal.NewFromInt(tt.discrepancy),
				InitialBalances:  decimal.NewFromInt(tt.initial),
				UnexplainedDrift: decimal.NewFromInt(tt.discrepancy - tt.initial),
			}
			assert.Equal(t, tt.want, report.RepairIncludesInitialBalances())
		})
	}
}

func TestOracleImpl_DiagnoseFailsWhenSourceFails(t *testing.T) {
	// given
	f := setup()
	oracle := NewOracle(failingWallets{}, f.budgets, f.oracle.audit, f.oracle.clock)

	// when
	_, err := oracle.Diagnose(context.Background(), userId)

	// then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list wallets")
}

func TestOracleImpl_Repair(t *testing.T) {
	t.Run("should book the discrepancy as income without moving wallets", func(t *testing.T) {
		// given
		f := setup()
		cash := f.wallet(t, "Cash", 100)
		f.transaction(t, "Salary", budget.KindIncome, 50, &cash.Id)
		f.transaction(t, "Food", budget.KindExpense, 30, &cash.Id)
		june := budget.Period{Month: 6, Year: 2024}
		_, err := f.budgetRepo.GetOrCreateMonth(f.ctx, userId, june)
		require.NoError(t, err)

		// when
		result, err := f.oracle.Repair(context.Background(), userId)

		// then
		require.NoError(t, err)
		assert.True(t, result.Before.Discrepancy.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, budget.CategoryBalanceAdjustment, result.Transaction.Category)
		assert.Equal(t, budget.KindIncome, result.Transaction.Kind)
		assert.Nil(t, result.Transaction.WalletId)
		assert.True(t, result.Transaction.Actual.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, budget.Period{Month: 5, Year: 2024}, result.Transaction.Period())

		balance, err := f.ledger.TotalBalance(f.ctx)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(120)), "balance was %s", balance)

		after, err := f.oracle.Diagnose(context.Background(), userId)
		require.NoError(t, err)
		assert.True(t, after.Discrepancy.IsZero(), "discrepancy was %s", after.Discrepancy)
		assert.True(t, result.Before.RepairIncludesInitialBalances())
		assert.False(t, result.Before.Drift)
		assert.True(t, after.Drift)
		assert.True(t, after.UnexplainedDrift.Equal(decimal.NewFromInt(-100)), "drift was %s", after.UnexplainedDrift)
		assert.False(t, after.RepairIncludesInitialBalances())

		next, err := f.budgetRepo.GetMonth(f.ctx, userId, june)
		require.NoError(t, err)
		assert.True(t, next.RolloverActual.Equal(decimal.NewFromInt(120)), "rollover was %s", next.RolloverActual)
	})

	t.Run("should refuse when there is no discrepancy", func(t *testing.T) {
		// given
		f := setup()

		// when
		_, err := f.oracle.Repair(context.Background(), userId)

		// then
		assert.ErrorIs(t, err, ErrNothingToRepair)
	})

	t.Run("should refuse a negative discrepancy", func(t *testing.T) {
		// given
		f := setup()
		f.transaction(t, "Gift", budget.KindIncome, 200, nil)

		// when
		result, err := f.oracle.Repair(context.Background(), userId)

		// then
		assert.ErrorIs(t, err, ErrNothingToRepair)
		assert.True(t, result.Before.Discrepancy.Equal(decimal.NewFromInt(-200)))
		months, err := f.budgets.ListMonths(f.ctx)
		require.NoError(t, err)
		require.Len(t, months, 1)
		assert.Len(t, months[0].Transactions, 1)
	})
}
