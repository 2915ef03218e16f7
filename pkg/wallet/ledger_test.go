package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	ledger    *LedgerImpl
	repo      *StubRepository
	auditRepo *audit.StubRepository
	mu        sync.Mutex
	announced []event_bus.AuditEntryAppended
	ctx       context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	clock := &utils.MockClock{FixedNow: now}
	bus := event_bus.NewEventBus()
	event_bus.SubscribeTyped(bus, event_bus.AuditEntryAppendedEvent, func(e event_bus.EventT[event_bus.AuditEntryAppended]) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.announced = append(f.announced, e.Data)
		return nil
	})
	f.auditRepo = audit.NewStubRepository()
	f.repo = NewStubRepository(f.auditRepo)
	f.ledger = NewLedger(f.repo, audit.NewService(f.auditRepo, bus, clock), clock)
	f.ctx = user.WithId(context.Background(), 1)
	return f
}

func (f *fixture) wallet(t *testing.T, name string, initial int64) Wallet {
	t.Helper()
	w, err := f.ledger.CreateWallet(f.ctx, Wallet{Name: name, Type: TypeCash, InitialBalance: decimal.NewFromInt(initial)})
	require.NoError(t, err)
	return w
}

func (f *fixture) entries(t *testing.T, walletId int) []audit.Entry {
	t.Helper()
	entries, err := f.auditRepo.List(f.ctx, 1, audit.Filter{EntityType: audit.EntityWallet, EntityId: walletId})
	require.NoError(t, err)
	return entries
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestLedger_CreateWallet(t *testing.T) {
	t.Run("should start at the initial balance and record creation", func(t *testing.T) {
		// given
		f := setup(t)

		// when
		w := f.wallet(t, "Cash", 250)

		// then
		assert.True(t, w.Balance.Equal(dec(250)))
		entries := f.entries(t, w.Id)
		require.Len(t, entries, 1)
		assert.Equal(t, audit.WalletCreated, entries[0].ChangeType)
		assert.True(t, entries[0].ChangeAmount.IsZero())
		assert.True(t, entries[0].NewBalance.Equal(dec(250)))
		assert.Equal(t, now, entries[0].Timestamp)
		require.Len(t, f.announced, 1)
	})

	t.Run("should reject negative initial balance", func(t *testing.T) {
		// given
		f := setup(t)

		// when
		_, err := f.ledger.CreateWallet(f.ctx, Wallet{Name: "Bank", Type: TypeBank, InitialBalance: dec(-1)})

		// then
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("should reject unknown type", func(t *testing.T) {
		// given
		f := setup(t)

		// when
		_, err := f.ledger.CreateWallet(f.ctx, Wallet{Name: "Crypto", Type: "crypto"})

		// then
		assert.ErrorIs(t, err, ErrInvalidWallet)
	})

	t.Run("should keep a single savings wallet", func(t *testing.T) {
		// given
		f := setup(t)
		first, err := f.ledger.CreateWallet(f.ctx, Wallet{Name: "Savings", Type: TypeBank, IsSavingsWallet: true})
		require.NoError(t, err)

		// when
		second, err := f.ledger.CreateWallet(f.ctx, Wallet{Name: "New savings", Type: TypeBank, IsSavingsWallet: true})
		require.NoError(t, err)

		// then
		stored, err := f.ledger.GetWallet(f.ctx, first.Id)
		require.NoError(t, err)
		assert.False(t, stored.IsSavingsWallet)
		assert.True(t, second.IsSavingsWallet)
	})
}

func TestLedger_Adjust(t *testing.T) {
	t.Run("should move the balance and write one audit entry", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)

		// when
		result, err := f.ledger.Adjust(f.ctx, w.Id, dec(-40), "Groceries")

		// then
		require.NoError(t, err)
		assert.True(t, result.PreviousBalance.Equal(dec(100)))
		assert.True(t, result.NewBalance.Equal(dec(60)))
		entries := f.entries(t, w.Id)
		require.Len(t, entries, 2)
		last := entries[1]
		assert.Equal(t, audit.BalanceChange, last.ChangeType)
		assert.True(t, last.ChangeAmount.Equal(dec(-40)))
		assert.True(t, last.NewBalance.Sub(last.PreviousBalance).Equal(last.ChangeAmount))
		assert.Equal(t, "Groceries", last.Reason)
		assert.Len(t, f.announced, 2)
	})

	t.Run("should reject overdraft and leave state untouched", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)

		// when
		_, err := f.ledger.Adjust(f.ctx, w.Id, dec(-101), "Too much")

		// then
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		stored, err := f.ledger.GetWallet(f.ctx, w.Id)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(dec(100)))
		assert.Len(t, f.entries(t, w.Id), 1)
	})

	t.Run("should allow draining the wallet to exactly zero", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)

		// when
		result, err := f.ledger.Adjust(f.ctx, w.Id, dec(-100), "All of it")

		// then
		require.NoError(t, err)
		assert.True(t, result.NewBalance.IsZero())
	})

	t.Run("should reject zero delta", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)

		// when
		_, err := f.ledger.Adjust(f.ctx, w.Id, decimal.Zero, "")

		// then
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("should return not found for another user's wallet", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)

		// when
		_, err := f.ledger.Adjust(user.WithId(context.Background(), 2), w.Id, dec(10), "")

		// then
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("should restore the balance when the audit write fails", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)
		f.auditRepo.FailWith = errors.New("disk full")

		// when
		_, err := f.ledger.Adjust(f.ctx, w.Id, dec(25), "Salary")

		// then
		assert.ErrorIs(t, err, ErrConsistency)
		stored, err := f.ledger.GetWallet(f.ctx, w.Id)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(dec(100)))
	})

	t.Run("should not announce when joining an outer unit of work", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Cash", 100)
		announcedBefore := len(f.announced)
		var result AdjustResult

		// when
		err := database.NoopTransactor{}.InTx(f.ctx, func(ctx context.Context) error {
			var err error
			result, err = f.ledger.Adjust(ctx, w.Id, dec(5), "Nested")
			return err
		})

		// then
		require.NoError(t, err)
		assert.Len(t, f.announced, announcedBefore)
		assert.Equal(t, w.Id, result.Entry.EntityId)
	})
}

func TestLedger_ConcurrentAdjustmentsAreSerialized(t *testing.T) {
	// given
	f := setup(t)
	w := f.wallet(t, "Cash", 0)
	var wg sync.WaitGroup

	// when
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Adjust(f.ctx, w.Id, dec(2), "tick")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// then
	stored, err := f.ledger.GetWallet(f.ctx, w.Id)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec(100)), "balance was %s", stored.Balance)
	sum, err := f.auditRepo.SumChanges(f.ctx, 1, audit.EntityWallet, w.Id)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(stored.InitialBalance.Add(sum)))
}

func TestLedger_SetBalance(t *testing.T) {
	t.Run("should record the difference as a wallet update", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Bank", 300)

		// when
		result, err := f.ledger.SetBalance(f.ctx, w.Id, dec(120), "")

		// then
		require.NoError(t, err)
		assert.True(t, result.NewBalance.Equal(dec(120)))
		entries := f.entries(t, w.Id)
		require.Len(t, entries, 2)
		assert.Equal(t, audit.WalletUpdated, entries[1].ChangeType)
		assert.True(t, entries[1].ChangeAmount.Equal(dec(-180)))
		assert.Equal(t, "Balance edited", entries[1].Reason)
	})

	t.Run("should reject negative balance", func(t *testing.T) {
		// given
		f := setup(t)
		w := f.wallet(t, "Bank", 300)

		// when
		_, err := f.ledger.SetBalance(f.ctx, w.Id, dec(-5), "")

		// then
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedger_DeleteWallet(t *testing.T) {
	// given
	f := setup(t)
	w := f.wallet(t, "Card", 80)
	_, err := f.ledger.Adjust(f.ctx, w.Id, dec(20), "Refund")
	require.NoError(t, err)

	// when
	err = f.ledger.DeleteWallet(f.ctx, w.Id)

	// then
	require.NoError(t, err)
	_, err = f.ledger.GetWallet(f.ctx, w.Id)
	assert.ErrorIs(t, err, ErrWalletNotFound)
	entries := f.entries(t, w.Id)
	require.Len(t, entries, 3)
	assert.Equal(t, audit.WalletDeleted, entries[2].ChangeType)
	assert.True(t, entries[2].ChangeAmount.Equal(dec(-100)))
	assert.True(t, entries[2].NewBalance.IsZero())
}

func TestLedger_TotalBalance(t *testing.T) {
	// given
	f := setup(t)
	f.wallet(t, "Cash", 10)
	f.wallet(t, "Bank", 32)

	// when
	total, err := f.ledger.TotalBalance(f.ctx)

	// then
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(42)))
}

func TestLedger_RequiresUser(t *testing.T) {
	// given
	f := setup(t)

	// when
	_, err := f.ledger.ListWallets(context.Background())

	// then
	assert.ErrorIs(t, err, user.ErrNoUser)
}
