package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/test_utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var db *pgxpool.Pool

func TestMain(m *testing.M) {
	var cleanup func()
	db, cleanup = test_utils.TestWithDB()
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupTestRepository(t *testing.T) (context.Context, *RepositoryImpl, int) {
	test_utils.RequireDB(t, db)
	return context.Background(), NewRepository(db), test_utils.SeedUser(t, db)
}

var recordedAt = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func walletChange(userId int, walletId int, change int64, minutes int) Entry {
	return Entry{
		Id:           uuid.New(),
		UserId:       userId,
		EntityType:   EntityWallet,
		EntityId:     walletId,
		EntityName:   "Cash",
		ChangeType:   BalanceChange,
		ChangeAmount: decimal.NewFromInt(change),
		Reason:       "test",
		Timestamp:    recordedAt.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestRepositoryImpl_AppendAndList(t *testing.T) {
	// given
	ctx, repo, userId := setupTestRepository(t)
	later := walletChange(userId, 1, -5, 2)
	earlier := walletChange(userId, 1, 20, 1)
	loanEntry := walletChange(userId, 1, 100, 3)
	loanEntry.EntityType = EntityLoan
	loanEntry.ChangeType = LoanCreated
	for _, e := range []Entry{later, earlier, loanEntry} {
		require.NoError(t, repo.Append(ctx, e))
	}

	// when
	wallets, err := repo.List(ctx, userId, Filter{EntityType: EntityWallet, EntityId: 1})
	require.NoError(t, err)
	limited, err := repo.List(ctx, userId, Filter{Limit: 2})
	require.NoError(t, err)

	// then
	require.Len(t, wallets, 2)
	assert.Equal(t, earlier.Id, wallets[0].Id)
	assert.Equal(t, later.Id, wallets[1].Id)
	assert.True(t, wallets[1].ChangeAmount.Equal(decimal.NewFromInt(-5)))
	assert.True(t, wallets[0].Timestamp.Equal(earlier.Timestamp))
	assert.Len(t, limited, 2)
}

func TestRepositoryImpl_SumChanges(t *testing.T) {
	// given
	ctx, repo, userId := setupTestRepository(t)
	other := test_utils.SeedUser(t, db)
	require.NoError(t, repo.Append(ctx, walletChange(userId, 7, 40, 1)))
	require.NoError(t, repo.Append(ctx, walletChange(userId, 7, -15, 2)))
	require.NoError(t, repo.Append(ctx, walletChange(userId, 8, 99, 3)))
	require.NoError(t, repo.Append(ctx, walletChange(other, 7, 1000, 4)))

	// when
	sum, err := repo.SumChanges(ctx, userId, EntityWallet, 7)
	require.NoError(t, err)
	none, err := repo.SumChanges(ctx, userId, EntityLoan, 7)
	require.NoError(t, err)

	// then
	assert.True(t, sum.Equal(decimal.NewFromInt(25)), "sum was %s", sum)
	assert.True(t, none.IsZero())
}

func TestRepositoryImpl_AppendRejectsIncompleteEntries(t *testing.T) {
	// given
	ctx, repo, userId := setupTestRepository(t)
	entry := walletChange(userId, 1, 5, 0)
	entry.ChangeType = ""

	// when
	err := repo.Append(ctx, entry)

	// then
	assert.ErrorIs(t, err, ErrInvalidEntry)
	entries, err := repo.List(ctx, userId, Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
