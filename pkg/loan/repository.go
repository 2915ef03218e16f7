package loan

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	// FindActive returns the active loan for the counterparty and direction linked to walletId (nil: unlinked).
	FindActive(ctx context.Context, userId int, personName string, direction Direction, walletId *int) (Loan, bool, error)
	// Get loads the loan with its entries and locks it until the unit of work ends.
	Get(ctx context.Context, userId int, id int) (Loan, error)
	List(ctx context.Context, userId int) ([]Loan, error)
	Create(ctx context.Context, userId int, l Loan) (Loan, error)
	// Update stores the amounts, status and wallet link.
	Update(ctx context.Context, userId int, l Loan) error
	AddEntry(ctx context.Context, loanId int, e Entry) error
	DeleteEntry(ctx context.Context, loanId int, entryId uuid.UUID) error
	Delete(ctx context.Context, userId int, id int) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const loanColumns = `id, user_id, person_name, direction, total_amount, remaining_amount, status, wallet_id, created`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.Id, &l.UserId, &l.PersonName, &l.Direction, &l.TotalAmount, &l.RemainingAmount, &l.Status,
		&l.WalletId, &l.Created)
	return l, err
}

func (r *RepositoryImpl) FindActive(ctx context.Context, userId int, personName string, direction Direction, walletId *int) (Loan, bool, error) {
	q := database.Conn(ctx, r.db)
	query := `SELECT ` + loanColumns + ` FROM loan
			  WHERE user_id = $1 AND lower(person_name) = lower($2) AND direction = $3 AND status = $4
			    AND wallet_id IS NOT DISTINCT FROM $5
			  ORDER BY id LIMIT 1 FOR UPDATE`
	l, err := scanLoan(q.QueryRow(ctx, query, userId, personName, direction, StatusActive, walletId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, false, nil
	}
	if err != nil {
		err := fmt.Errorf("could not find active loan: %w", err)
		log.Error(err)
		return Loan{}, false, err
	}
	if err := r.loadEntries(ctx, q, &l); err != nil {
		return Loan{}, false, err
	}
	return l, true, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (Loan, error) {
	q := database.Conn(ctx, r.db)
	query := `SELECT ` + loanColumns + ` FROM loan WHERE id = $1 AND user_id = $2 FOR UPDATE`
	l, err := scanLoan(q.QueryRow(ctx, query, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get loan: %w", err)
		log.Error(err)
		return Loan{}, err
	}
	if err := r.loadEntries(ctx, q, &l); err != nil {
		return Loan{}, err
	}
	return l, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]Loan, error) {
	q := database.Conn(ctx, r.db)
	rows, err := q.Query(ctx, `SELECT `+loanColumns+` FROM loan WHERE user_id = $1 ORDER BY status, created DESC, id`, userId)
	if err != nil {
		err := fmt.Errorf("could not query loans: %w", err)
		log.Error(err)
		return nil, err
	}
	loans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Loan, error) {
		return scanLoan(row)
	})
	if err != nil {
		err := fmt.Errorf("error scanning loans: %w", err)
		log.Error(err)
		return nil, err
	}
	for i := range loans {
		if err := r.loadEntries(ctx, q, &loans[i]); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, userId int, l Loan) (Loan, error) {
	q := database.Conn(ctx, r.db)
	query := `INSERT INTO loan (user_id, person_name, direction, total_amount, remaining_amount, status, wallet_id, created)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRow(ctx, query, userId, l.PersonName, l.Direction, l.TotalAmount, l.RemainingAmount, l.Status,
		l.WalletId, l.Created).Scan(&l.Id)
	if err != nil {
		err := fmt.Errorf("could not create loan: %w", err)
		log.Error(err)
		return Loan{}, err
	}
	l.UserId = userId
	for _, e := range append(append([]Entry{}, l.TopUps...), l.Payments...) {
		if err := r.AddEntry(ctx, l.Id, e); err != nil {
			return Loan{}, err
		}
	}
	return l, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, userId int, l Loan) error {
	query := `UPDATE loan SET total_amount = $1, remaining_amount = $2, status = $3, wallet_id = $4
			  WHERE id = $5 AND user_id = $6`
	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, l.TotalAmount, l.RemainingAmount, l.Status, l.WalletId, l.Id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *RepositoryImpl) AddEntry(ctx context.Context, loanId int, e Entry) error {
	query := `INSERT INTO loan_entry (id, loan_id, kind, amount, date, note) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := database.Conn(ctx, r.db).Exec(ctx, query, e.Id, loanId, e.Kind, e.Amount, e.Date, e.Note); err != nil {
		err := fmt.Errorf("could not store loan entry: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) DeleteEntry(ctx context.Context, loanId int, entryId uuid.UUID) error {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, `DELETE FROM loan_entry WHERE id = $1 AND loan_id = $2`, entryId, loanId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id int) error {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, `DELETE FROM loan WHERE id = $1 AND user_id = $2`, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *RepositoryImpl) loadEntries(ctx context.Context, q database.Querier, l *Loan) error {
	rows, err := q.Query(ctx, `SELECT id, kind, amount, date, note FROM loan_entry WHERE loan_id = $1 ORDER BY date, id`, l.Id)
	if err != nil {
		err := fmt.Errorf("could not query loan entries: %w", err)
		log.Error(err)
		return err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Id, &e.Kind, &e.Amount, &e.Date, &e.Note)
		return e, err
	})
	if err != nil {
		err := fmt.Errorf("error scanning loan entries: %w", err)
		log.Error(err)
		return err
	}
	l.Payments, l.TopUps = nil, nil
	for _, e := range entries {
		if e.Kind == KindPayment {
			l.Payments = append(l.Payments, e)
		} else {
			l.TopUps = append(l.TopUps, e)
		}
	}
	return nil
}
