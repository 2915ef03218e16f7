package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	// Create stores w and its creation entry. The entry gets the new wallet id and balances filled in.
	Create(ctx context.Context, userId int, w Wallet, entry audit.Entry) (Wallet, audit.Entry, error)
	Get(ctx context.Context, userId int, id int) (Wallet, error)
	List(ctx context.Context, userId int) ([]Wallet, error)
	// UpdateDetails updates everything except the balances.
	UpdateDetails(ctx context.Context, userId int, w Wallet) (Wallet, error)
	// Apply performs a guarded read-modify-write of the balance and appends the audit entry atomically.
	Apply(ctx context.Context, userId int, cmd Adjustment) (AdjustResult, error)
	Delete(ctx context.Context, userId int, id int, entry audit.Entry) (audit.Entry, error)
}

type RepositoryImpl struct {
	db    *pgxpool.Pool
	tx    database.Transactor
	audit audit.Appender
}

func NewRepository(db *pgxpool.Pool, tx database.Transactor, auditAppender audit.Appender) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: tx, audit: auditAppender}
}

const walletColumns = `id, user_id, name, type, balance, initial_balance, is_savings_wallet, position`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	err := row.Scan(&w.Id, &w.UserId, &w.Name, &w.Type, &w.Balance, &w.InitialBalance, &w.IsSavingsWallet, &w.Position)
	return w, err
}

func (r *RepositoryImpl) Create(ctx context.Context, userId int, w Wallet, entry audit.Entry) (Wallet, audit.Entry, error) {
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.db)
		if w.IsSavingsWallet {
			if err := clearSavingsFlag(ctx, q, userId, 0); err != nil {
				return err
			}
		}
		query := `INSERT INTO wallet (user_id, name, type, balance, initial_balance, is_savings_wallet, position)
				  VALUES ($1, $2, $3, $4, $4, $5, (SELECT COALESCE(MAX(position), 0) + 100 FROM wallet WHERE user_id = $1))
				  RETURNING ` + walletColumns
		created, err := scanWallet(q.QueryRow(ctx, query, userId, w.Name, w.Type, w.InitialBalance, w.IsSavingsWallet))
		if err != nil {
			err := fmt.Errorf("could not execute query: %w", err)
			log.Error(err)
			return err
		}
		w = created

		entry.EntityId = w.Id
		entry.EntityName = w.Name
		entry.PreviousBalance = decimal.Zero
		entry.NewBalance = w.Balance
		entry.ChangeAmount = decimal.Zero
		if err := r.audit.Append(ctx, entry); err != nil {
			return fmt.Errorf("%w: %w", ErrConsistency, err)
		}
		return nil
	})
	if err != nil {
		return Wallet{}, audit.Entry{}, err
	}
	return w, entry, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet WHERE id = $1 AND user_id = $2`
	w, err := scanWallet(database.Conn(ctx, r.db).QueryRow(ctx, query, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not get wallet: %w", err)
		log.Error(err)
		return Wallet{}, err
	}
	return w, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet WHERE user_id = $1 ORDER BY position, id`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query wallets: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return wallets, nil
}

func (r *RepositoryImpl) UpdateDetails(ctx context.Context, userId int, w Wallet) (Wallet, error) {
	var updated Wallet
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.db)
		if w.IsSavingsWallet {
			if err := clearSavingsFlag(ctx, q, userId, w.Id); err != nil {
				return err
			}
		}
		query := `UPDATE wallet SET name = $1, type = $2, is_savings_wallet = $3, position = $4
				  WHERE id = $5 AND user_id = $6 RETURNING ` + walletColumns
		var err error
		updated, err = scanWallet(q.QueryRow(ctx, query, w.Name, w.Type, w.IsSavingsWallet, w.Position, w.Id, userId))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			err := fmt.Errorf("could not execute query: %w", err)
			log.Error(err)
			return err
		}
		return nil
	})
	if err != nil {
		return Wallet{}, err
	}
	return updated, nil
}

func (r *RepositoryImpl) Apply(ctx context.Context, userId int, cmd Adjustment) (AdjustResult, error) {
	var result AdjustResult
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.db)

		// row lock held until the unit of work ends
		query := `SELECT ` + walletColumns + ` FROM wallet WHERE id = $1 AND user_id = $2 FOR UPDATE`
		w, err := scanWallet(q.QueryRow(ctx, query, cmd.WalletId, userId))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			err := fmt.Errorf("could not lock wallet: %w", err)
			log.Error(err)
			return err
		}

		previous := w.Balance
		next, err := cmd.apply(previous)
		if err != nil {
			return err
		}

		if _, err := q.Exec(ctx, `UPDATE wallet SET balance = $1 WHERE id = $2 AND user_id = $3`, next, w.Id, userId); err != nil {
			err := fmt.Errorf("could not execute query: %w", err)
			log.Error(err)
			return err
		}
		w.Balance = next

		entry := cmd.entry(userId, w, previous, next)
		if err := r.audit.Append(ctx, entry); err != nil {
			return fmt.Errorf("%w: %w", ErrConsistency, err)
		}
		result = AdjustResult{Wallet: w, PreviousBalance: previous, NewBalance: next, Entry: entry}
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}
	return result, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id int, entry audit.Entry) (audit.Entry, error) {
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.db)
		query := `DELETE FROM wallet WHERE id = $1 AND user_id = $2 RETURNING ` + walletColumns
		w, err := scanWallet(q.QueryRow(ctx, query, id, userId))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			err := fmt.Errorf("could not execute query: %w", err)
			log.Error(err)
			return err
		}
		entry = deletionEntry(entry, w)
		if err := r.audit.Append(ctx, entry); err != nil {
			return fmt.Errorf("%w: %w", ErrConsistency, err)
		}
		return nil
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func deletionEntry(entry audit.Entry, w Wallet) audit.Entry {
	entry.EntityId = w.Id
	entry.EntityName = w.Name
	entry.PreviousBalance = w.Balance
	entry.NewBalance = decimal.Zero
	entry.ChangeAmount = w.Balance.Neg()
	return entry
}

func clearSavingsFlag(ctx context.Context, q database.Querier, userId int, exceptId int) error {
	_, err := q.Exec(ctx, `UPDATE wallet SET is_savings_wallet = FALSE WHERE user_id = $1 AND id <> $2 AND is_savings_wallet`,
		userId, exceptId)
	if err != nil {
		err := fmt.Errorf("could not clear savings wallet flag: %w", err)
		log.Error(err)
		return err
	}
	return nil
}
