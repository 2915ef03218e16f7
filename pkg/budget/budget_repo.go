package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	GetMonth(ctx context.Context, userId int, period Period) (Month, error)
	// GetOrCreateMonth returns the month for period, creating it with a zero rollover when missing.
	GetOrCreateMonth(ctx context.Context, userId int, period Period) (Month, error)
	// ListMonths returns every month of the user, oldest first, with transactions.
	ListMonths(ctx context.Context, userId int) ([]Month, error)
	// LockMonths takes row locks on the months from period onwards so chain walks do not interleave.
	LockMonths(ctx context.Context, userId int, from Period) error
	UpdateRollover(ctx context.Context, userId int, monthId int, actual decimal.Decimal) error
	GetTransaction(ctx context.Context, userId int, id int) (Transaction, error)
	StoreTransaction(ctx context.Context, userId int, t Transaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, userId int, t Transaction) (Transaction, error)
	DeleteTransaction(ctx context.Context, userId int, id int) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const monthColumns = `id, user_id, month, year, rollover_planned, rollover_actual`

const transactionColumns = `id, budget_id, name, category, planned, actual, date, COALESCE(time, ''), kind,
	wallet_id, to_wallet_id, goal_id`

func scanMonth(row pgx.Row) (Month, error) {
	var m Month
	err := row.Scan(&m.Id, &m.UserId, &m.Period.Month, &m.Period.Year, &m.RolloverPlanned, &m.RolloverActual)
	return m, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var kind string
	err := row.Scan(&t.Id, &t.BudgetId, &t.Name, &t.Category, &t.Planned, &t.Actual, &t.Date, &t.Time, &kind,
		&t.WalletId, &t.ToWalletId, &t.GoalId)
	if err != nil {
		return Transaction{}, err
	}
	t.Kind = storedKind(t.Id, kind, t.Category)
	return t, nil
}

// storedKind reads a persisted kind. An unknown value must not hide the rest of the month, so it reads as expense.
func storedKind(id int, raw string, category string) Kind {
	kind, err := NormalizeKind(raw, category)
	if err != nil {
		log.Warnf("transaction %d has unknown kind %q, treating it as expense", id, raw)
		return KindExpense
	}
	return kind
}

func (r *RepositoryImpl) GetMonth(ctx context.Context, userId int, period Period) (Month, error) {
	q := database.Conn(ctx, r.db)
	query := `SELECT ` + monthColumns + ` FROM budget_month WHERE user_id = $1 AND month = $2 AND year = $3`
	m, err := scanMonth(q.QueryRow(ctx, query, userId, period.Month, period.Year))
	if errors.Is(err, pgx.ErrNoRows) {
		return Month{}, ErrBudgetNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get budget month: %w", err)
		log.Error(err)
		return Month{}, err
	}
	m.Transactions, err = r.transactions(ctx, q, `WHERE budget_id = $1`, m.Id)
	if err != nil {
		return Month{}, err
	}
	return m, nil
}

func (r *RepositoryImpl) GetOrCreateMonth(ctx context.Context, userId int, period Period) (Month, error) {
	query := `INSERT INTO budget_month (user_id, month, year, rollover_planned, rollover_actual)
			  VALUES ($1, $2, $3, 0, 0) ON CONFLICT (user_id, month, year) DO NOTHING`
	if _, err := database.Conn(ctx, r.db).Exec(ctx, query, userId, period.Month, period.Year); err != nil {
		err := fmt.Errorf("could not create budget month: %w", err)
		log.Error(err)
		return Month{}, err
	}
	return r.GetMonth(ctx, userId, period)
}

func (r *RepositoryImpl) ListMonths(ctx context.Context, userId int) ([]Month, error) {
	q := database.Conn(ctx, r.db)
	rows, err := q.Query(ctx, `SELECT `+monthColumns+` FROM budget_month WHERE user_id = $1 ORDER BY year, month`, userId)
	if err != nil {
		err := fmt.Errorf("could not query budget months: %w", err)
		log.Error(err)
		return nil, err
	}
	months, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Month, error) {
		return scanMonth(row)
	})
	if err != nil {
		err := fmt.Errorf("error scanning budget months: %w", err)
		log.Error(err)
		return nil, err
	}

	all, err := r.transactions(ctx, q, `WHERE user_id = $1`, userId)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[int][]Transaction, len(months))
	for _, t := range all {
		byMonth[t.BudgetId] = append(byMonth[t.BudgetId], t)
	}
	for i := range months {
		months[i].Transactions = byMonth[months[i].Id]
	}
	return months, nil
}

func (r *RepositoryImpl) LockMonths(ctx context.Context, userId int, from Period) error {
	query := `SELECT id FROM budget_month WHERE user_id = $1 AND (year, month) >= ($2, $3) ORDER BY year, month FOR UPDATE`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId, from.Year, from.Month)
	if err != nil {
		err := fmt.Errorf("could not lock budget months: %w", err)
		log.Error(err)
		return err
	}
	rows.Close()
	return rows.Err()
}

func (r *RepositoryImpl) UpdateRollover(ctx context.Context, userId int, monthId int, actual decimal.Decimal) error {
	query := `UPDATE budget_month SET rollover_actual = $1 WHERE id = $2 AND user_id = $3`
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, actual, monthId, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

func (r *RepositoryImpl) GetTransaction(ctx context.Context, userId int, id int) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM budget_transaction WHERE id = $1 AND user_id = $2`
	t, err := scanTransaction(database.Conn(ctx, r.db).QueryRow(ctx, query, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get transaction: %w", err)
		log.Error(err)
		return Transaction{}, err
	}
	return t, nil
}

func (r *RepositoryImpl) StoreTransaction(ctx context.Context, userId int, t Transaction) (Transaction, error) {
	query := `INSERT INTO budget_transaction (budget_id, user_id, name, category, planned, actual, date, time, kind,
				wallet_id, to_wallet_id, goal_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)
			  RETURNING id`
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, t.BudgetId, userId, t.Name, t.Category, t.Planned, t.Actual,
		t.Date, t.Time, t.Kind, t.WalletId, t.ToWalletId, t.GoalId).Scan(&t.Id)
	if err != nil {
		err := fmt.Errorf("could not store transaction: %w", err)
		log.Error(err)
		return Transaction{}, err
	}
	return t, nil
}

func (r *RepositoryImpl) UpdateTransaction(ctx context.Context, userId int, t Transaction) (Transaction, error) {
	query := `UPDATE budget_transaction SET budget_id = $1, name = $2, category = $3, planned = $4, actual = $5,
				date = $6, time = NULLIF($7, ''), kind = $8, wallet_id = $9, to_wallet_id = $10, goal_id = $11
			  WHERE id = $12 AND user_id = $13`
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, t.BudgetId, t.Name, t.Category, t.Planned, t.Actual,
		t.Date, t.Time, t.Kind, t.WalletId, t.ToWalletId, t.GoalId, t.Id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Transaction{}, err
	}
	if tag.RowsAffected() == 0 {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (r *RepositoryImpl) DeleteTransaction(ctx context.Context, userId int, id int) error {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, `DELETE FROM budget_transaction WHERE id = $1 AND user_id = $2`, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *RepositoryImpl) transactions(ctx context.Context, q database.Querier, where string, arg any) ([]Transaction, error) {
	rows, err := q.Query(ctx, `SELECT `+transactionColumns+` FROM budget_transaction `+where+` ORDER BY date, time NULLS FIRST, id`, arg)
	if err != nil {
		err := fmt.Errorf("could not query transactions: %w", err)
		log.Error(err)
		return nil, err
	}
	transactions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		err := fmt.Errorf("error scanning transactions: %w", err)
		log.Error(err)
		return nil, err
	}
	return transactions, nil
}
