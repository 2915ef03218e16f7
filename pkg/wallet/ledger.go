package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Announcer publishes audit entries once their unit of work has committed.
type Announcer interface {
	Announce(ctx context.Context, entries ...audit.Entry)
}

// Ledger owns every wallet balance mutation. Each mutation writes exactly
// one audit entry in the same unit of work.
type Ledger interface {
	// Adjust moves the balance by delta. A debit that would make the balance negative fails
	// with ErrInsufficientFunds and changes nothing.
	Adjust(ctx context.Context, walletId int, delta decimal.Decimal, reason string) (AdjustResult, error)
	SetBalance(ctx context.Context, walletId int, balance decimal.Decimal, reason string) (AdjustResult, error)
	CreateWallet(ctx context.Context, w Wallet) (Wallet, error)
	GetWallet(ctx context.Context, id int) (Wallet, error)
	ListWallets(ctx context.Context) ([]Wallet, error)
	UpdateWallet(ctx context.Context, w Wallet) (Wallet, error)
	DeleteWallet(ctx context.Context, id int) error
	// TotalBalance sums the balance of every wallet of the current user.
	TotalBalance(ctx context.Context) (decimal.Decimal, error)
}

type LedgerImpl struct {
	repo      Repository
	announcer Announcer
	clock     utils.Clock
}

func NewLedger(repo Repository, announcer Announcer, clock utils.Clock) *LedgerImpl {
	return &LedgerImpl{repo: repo, announcer: announcer, clock: clock}
}

func (l *LedgerImpl) Adjust(ctx context.Context, walletId int, delta decimal.Decimal, reason string) (AdjustResult, error) {
	if delta.IsZero() {
		return AdjustResult{}, fmt.Errorf("%w: adjustment must not be zero", ErrInvalidAmount)
	}
	return l.apply(ctx, Adjustment{
		WalletId:   walletId,
		Delta:      delta,
		ChangeType: audit.BalanceChange,
		Reason:     reason,
	})
}

func (l *LedgerImpl) SetBalance(ctx context.Context, walletId int, balance decimal.Decimal, reason string) (AdjustResult, error) {
	if balance.IsNegative() {
		return AdjustResult{}, fmt.Errorf("%w: balance cannot be negative", ErrInvalidAmount)
	}
	if reason == "" {
		reason = "Balance edited"
	}
	return l.apply(ctx, Adjustment{
		WalletId:   walletId,
		Target:     decimal.NewNullDecimal(balance),
		ChangeType: audit.WalletUpdated,
		Reason:     reason,
	})
}

func (l *LedgerImpl) apply(ctx context.Context, cmd Adjustment) (AdjustResult, error) {
	owner := !database.InTransaction(ctx)
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return AdjustResult{}, fmt.Errorf("failed to get current user: %w", err)
	}
	cmd.EntryId = uuid.New()
	cmd.At = l.clock.Now()

	result, err := l.repo.Apply(ctx, userId, cmd)
	if err != nil {
		if errors.Is(err, ErrConsistency) {
			log.Errorf("wallet %d left unchanged: %v", cmd.WalletId, err)
		}
		return AdjustResult{}, err
	}
	if owner {
		l.announce(ctx, result.Entry)
	}
	return result, nil
}

func (l *LedgerImpl) CreateWallet(ctx context.Context, w Wallet) (Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateDetails(&w); err != nil {
		return Wallet{}, err
	}
	if w.InitialBalance.IsNegative() {
		return Wallet{}, fmt.Errorf("%w: initial balance cannot be negative", ErrInvalidAmount)
	}

	entry := audit.Stamp(audit.Entry{
		UserId:     userId,
		EntityType: audit.EntityWallet,
		ChangeType: audit.WalletCreated,
		Reason:     "Wallet created",
	}, l.clock)
	created, entry, err := l.repo.Create(ctx, userId, w, entry)
	if err != nil {
		return Wallet{}, err
	}
	if !database.InTransaction(ctx) {
		l.announce(ctx, entry)
	}
	return created, nil
}

func (l *LedgerImpl) GetWallet(ctx context.Context, id int) (Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return l.repo.Get(ctx, userId, id)
}

func (l *LedgerImpl) ListWallets(ctx context.Context) ([]Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return l.repo.List(ctx, userId)
}

func (l *LedgerImpl) UpdateWallet(ctx context.Context, w Wallet) (Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateDetails(&w); err != nil {
		return Wallet{}, err
	}
	return l.repo.UpdateDetails(ctx, userId, w)
}

func (l *LedgerImpl) DeleteWallet(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	entry := audit.Stamp(audit.Entry{
		UserId:     userId,
		EntityType: audit.EntityWallet,
		ChangeType: audit.WalletDeleted,
		Reason:     "Wallet deleted",
	}, l.clock)
	entry, err = l.repo.Delete(ctx, userId, id, entry)
	if err != nil {
		return err
	}
	if !database.InTransaction(ctx) {
		l.announce(ctx, entry)
	}
	return nil
}

func (l *LedgerImpl) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	wallets, err := l.ListWallets(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, w := range wallets {
		total = total.Add(w.Balance)
	}
	return total, nil
}

func (l *LedgerImpl) announce(ctx context.Context, entries ...audit.Entry) {
	if l.announcer != nil {
		l.announcer.Announce(ctx, entries...)
	}
}

func validateDetails(w *Wallet) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWallet)
	}
	t, err := ParseType(string(w.Type))
	if err != nil {
		return err
	}
	w.Type = t
	return nil
}
