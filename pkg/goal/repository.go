package goal

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
	Create(ctx context.Context, userId int, g Goal) (Goal, error)
	Get(ctx context.Context, userId int, id int) (Goal, error)
	List(ctx context.Context, userId int) ([]Goal, error)
	UpdateStatus(ctx context.Context, userId int, id int, status Status) error
	// AddToCurrent moves the saved amount by delta, never below zero.
	AddToCurrent(ctx context.Context, userId int, id int, delta decimal.Decimal) (Goal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const goalColumns = `id, user_id, name, target_amount, current_amount, status`

func scanGoal(row pgx.Row) (Goal, error) {
	var g Goal
	err := row.Scan(&g.Id, &g.UserId, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Status)
	return g, err
}

func (r *RepositoryImpl) Create(ctx context.Context, userId int, g Goal) (Goal, error) {
	query := `INSERT INTO goal (user_id, name, target_amount, current_amount, status) VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + goalColumns
	created, err := scanGoal(database.Conn(ctx, r.db).QueryRow(ctx, query, userId, g.Name, g.TargetAmount, g.CurrentAmount, g.Status))
	if err != nil {
		err := fmt.Errorf("could not create goal: %w", err)
		log.Error(err)
		return Goal{}, err
	}
	return created, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goal WHERE id = $1 AND user_id = $2`
	g, err := scanGoal(database.Conn(ctx, r.db).QueryRow(ctx, query, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Goal{}, ErrGoalNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get goal: %w", err)
		log.Error(err)
		return Goal{}, err
	}
	return g, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]Goal, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx, `SELECT `+goalColumns+` FROM goal WHERE user_id = $1 ORDER BY id`, userId)
	if err != nil {
		err := fmt.Errorf("could not query goals: %w", err)
		log.Error(err)
		return nil, err
	}
	goals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Goal, error) {
		return scanGoal(row)
	})
	if err != nil {
		err := fmt.Errorf("error scanning goals: %w", err)
		log.Error(err)
		return nil, err
	}
	return goals, nil
}

func (r *RepositoryImpl) UpdateStatus(ctx context.Context, userId int, id int, status Status) error {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, `UPDATE goal SET status = $1 WHERE id = $2 AND user_id = $3`, status, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

func (r *RepositoryImpl) AddToCurrent(ctx context.Context, userId int, id int, delta decimal.Decimal) (Goal, error) {
	query := `UPDATE goal SET current_amount = GREATEST(current_amount + $1, 0) WHERE id = $2 AND user_id = $3
			  RETURNING ` + goalColumns
	g, err := scanGoal(database.Conn(ctx, r.db).QueryRow(ctx, query, delta, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Goal{}, ErrGoalNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Goal{}, err
	}
	return g, nil
}
