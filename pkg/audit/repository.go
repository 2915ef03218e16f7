package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidEntry = errors.New("invalid audit entry")

// Appender is the write side used by the wallet and loan repositories.
// It joins the unit of work found in ctx.
type Appender interface {
	Append(ctx context.Context, entry Entry) error
}

type Repository interface {
	Appender
	List(ctx context.Context, userId int, filter Filter) ([]Entry, error)
	SumChanges(ctx context.Context, userId int, entityType EntityType, entityId int) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Append(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	query := `INSERT INTO audit_log (id, user_id, entity_type, entity_id, entity_name, change_type,
				previous_balance, new_balance, change_amount, reason, created)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		entry.Id,
		entry.UserId,
		entry.EntityType,
		entry.EntityId,
		entry.EntityName,
		entry.ChangeType,
		entry.PreviousBalance,
		entry.NewBalance,
		entry.ChangeAmount,
		entry.Reason,
		entry.Timestamp,
	)
	if err != nil {
		err := fmt.Errorf("could not insert audit entry: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int, filter Filter) ([]Entry, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userId}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.EntityId != 0 {
		args = append(args, filter.EntityId)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	query := `SELECT id, user_id, entity_type, entity_id, entity_name, change_type, previous_balance, new_balance,
				change_amount, reason, created FROM audit_log WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query audit log: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Id, &e.UserId, &e.EntityType, &e.EntityId, &e.EntityName, &e.ChangeType,
			&e.PreviousBalance, &e.NewBalance, &e.ChangeAmount, &e.Reason, &e.Timestamp); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return entries, nil
}

func (r *RepositoryImpl) SumChanges(ctx context.Context, userId int, entityType EntityType, entityId int) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(change_amount), 0) FROM audit_log
			  WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3`
	var sum decimal.Decimal
	if err := database.Conn(ctx, r.db).QueryRow(ctx, query, userId, entityType, entityId).Scan(&sum); err != nil {
		err := fmt.Errorf("could not sum audit changes: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return sum, nil
}

func validate(entry Entry) error {
	switch {
	case entry.UserId == 0:
		return fmt.Errorf("%w: missing user", ErrInvalidEntry)
	case entry.EntityType == "" || entry.EntityId == 0:
		return fmt.Errorf("%w: missing entity", ErrInvalidEntry)
	case entry.ChangeType == "":
		return fmt.Errorf("%w: missing change type", ErrInvalidEntry)
	}
	return nil
}
