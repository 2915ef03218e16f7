package goal

import (
	"context"
	"testing"

	"github.com/fintrack/fintrack/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService() (*ServiceImpl, context.Context) {
	return NewService(NewStubRepository()), user.WithId(context.Background(), 1)
}

func createGoal(t *testing.T, service *ServiceImpl, ctx context.Context, target, current int64) Goal {
	t.Helper()
	g, err := service.CreateGoal(ctx, Goal{Name: "Bike", TargetAmount: decimal.NewFromInt(target), CurrentAmount: decimal.NewFromInt(current)})
	require.NoError(t, err)
	return g
}

func TestServiceImpl_CreateGoal(t *testing.T) {
	t.Run("should start active", func(t *testing.T) {
		// given
		service, ctx := setupService()

		// when
		g := createGoal(t, service, ctx, 500, 0)

		// then
		assert.Equal(t, StatusActive, g.Status)
		goals, err := service.ListGoals(ctx)
		require.NoError(t, err)
		assert.Len(t, goals, 1)
	})

	t.Run("should reject non positive target", func(t *testing.T) {
		// given
		service, ctx := setupService()

		// when
		_, err := service.CreateGoal(ctx, Goal{Name: "Nothing", TargetAmount: decimal.Zero})

		// then
		assert.ErrorIs(t, err, ErrInvalidGoal)
	})
}

func TestServiceImpl_SetStatus(t *testing.T) {
	t.Run("should refuse to fulfil before the target is reached", func(t *testing.T) {
		// given
		service, ctx := setupService()
		g := createGoal(t, service, ctx, 500, 499)

		// when
		_, err := service.SetStatus(ctx, g.Id, StatusFulfilled)

		// then
		assert.ErrorIs(t, err, ErrGoalNotReached)
	})

	t.Run("should fulfil once contributions reach the target", func(t *testing.T) {
		// given
		service, ctx := setupService()
		g := createGoal(t, service, ctx, 500, 450)
		require.NoError(t, service.Contribute(ctx, g.Id, decimal.NewFromInt(50)))

		// when
		updated, err := service.SetStatus(ctx, g.Id, StatusFulfilled)

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusFulfilled, updated.Status)
	})

	t.Run("should allow archiving and reactivating", func(t *testing.T) {
		// given
		service, ctx := setupService()
		g := createGoal(t, service, ctx, 500, 0)

		// when
		_, err := service.SetStatus(ctx, g.Id, StatusArchived)
		require.NoError(t, err)
		updated, err := service.SetStatus(ctx, g.Id, StatusActive)

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusActive, updated.Status)
	})

	t.Run("should return not found for another user's goal", func(t *testing.T) {
		// given
		service, ctx := setupService()
		g := createGoal(t, service, ctx, 500, 0)

		// when
		_, err := service.SetStatus(user.WithId(context.Background(), 2), g.Id, StatusArchived)

		// then
		assert.ErrorIs(t, err, ErrGoalNotFound)
	})
}

func TestServiceImpl_Contribute(t *testing.T) {
	// given
	service, ctx := setupService()
	g := createGoal(t, service, ctx, 500, 20)

	// when
	err := service.Contribute(ctx, g.Id, decimal.NewFromInt(-50))

	// then
	require.NoError(t, err)
	goals, err := service.ListGoals(ctx)
	require.NoError(t, err)
	assert.True(t, goals[0].CurrentAmount.IsZero())
}
