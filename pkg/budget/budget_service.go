package budget

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// WalletAdjuster is the part of wallet.Ledger the transaction flows need.
type WalletAdjuster interface {
	Adjust(ctx context.Context, walletId int, delta decimal.Decimal, reason string) (wallet.AdjustResult, error)
}

type GoalContributor interface {
	Contribute(ctx context.Context, goalId int, delta decimal.Decimal) error
}

type Service interface {
	GetMonth(ctx context.Context, period Period) (Month, error)
	ListMonths(ctx context.Context) ([]Month, error)
	AddTransaction(ctx context.Context, t Transaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int) error
}

type ServiceImpl struct {
	repo      Repository
	tx        database.Transactor
	wallets   WalletAdjuster
	goals     GoalContributor
	announcer wallet.Announcer
	eventBus  *event_bus.EventBus
}

func NewService(repo Repository, tx database.Transactor, wallets WalletAdjuster, goals GoalContributor,
	announcer wallet.Announcer, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, tx: tx, wallets: wallets, goals: goals, announcer: announcer, eventBus: eventBus}
}

func (s *ServiceImpl) GetMonth(ctx context.Context, period Period) (Month, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Month{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !period.Valid() {
		return Month{}, fmt.Errorf("%w: invalid period %s", ErrInvalidTransaction, period)
	}
	return s.repo.GetMonth(ctx, userId, period)
}

func (s *ServiceImpl) ListMonths(ctx context.Context) ([]Month, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListMonths(ctx, userId)
}

func (s *ServiceImpl) AddTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validate(&t); err != nil {
		return Transaction{}, err
	}

	owner := !database.InTransaction(ctx)
	var entries []audit.Entry
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		month, err := s.repo.GetOrCreateMonth(ctx, userId, t.Period())
		if err != nil {
			return err
		}
		t.BudgetId = month.Id

		entries, err = s.applyWalletEffects(ctx, nil, &t, "Transaction: "+t.Name)
		if err != nil {
			return err
		}
		if err := s.applyGoalEffects(ctx, nil, &t); err != nil {
			return err
		}
		t, err = s.repo.StoreTransaction(ctx, userId, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}

	if owner {
		s.announce(ctx, entries)
	}
	s.publishChanged(ctx, userId, t.Id, t.Period())
	return t, nil
}

func (s *ServiceImpl) UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validate(&t); err != nil {
		return Transaction{}, err
	}

	owner := !database.InTransaction(ctx)
	var entries []audit.Entry
	var original Transaction
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		original, err = s.repo.GetTransaction(ctx, userId, t.Id)
		if err != nil {
			return err
		}
		month, err := s.repo.GetOrCreateMonth(ctx, userId, t.Period())
		if err != nil {
			return err
		}
		t.BudgetId = month.Id

		entries, err = s.applyWalletEffects(ctx, &original, &t, "Transaction edited: "+t.Name)
		if err != nil {
			return err
		}
		if err := s.applyGoalEffects(ctx, &original, &t); err != nil {
			return err
		}
		t, err = s.repo.UpdateTransaction(ctx, userId, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}

	if owner {
		s.announce(ctx, entries)
	}
	earliest := t.Period()
	if original.Period().Before(earliest) {
		earliest = original.Period()
	}
	s.publishChanged(ctx, userId, t.Id, earliest)
	return t, nil
}

func (s *ServiceImpl) DeleteTransaction(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	owner := !database.InTransaction(ctx)
	var entries []audit.Entry
	var original Transaction
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		original, err = s.repo.GetTransaction(ctx, userId, id)
		if err != nil {
			return err
		}
		entries, err = s.applyWalletEffects(ctx, &original, nil, "Transaction deleted: "+original.Name)
		if err != nil {
			return err
		}
		if err := s.applyGoalEffects(ctx, &original, nil); err != nil {
			return err
		}
		return s.repo.DeleteTransaction(ctx, userId, id)
	})
	if err != nil {
		return err
	}

	if owner {
		s.announce(ctx, entries)
	}
	s.publishChanged(ctx, userId, id, original.Period())
	return nil
}

type walletEffect struct {
	walletId int
	delta    decimal.Decimal
	// reversalOnly is set when the wallet is only touched to undo a previous effect.
	reversalOnly bool
}

func effectsOf(t *Transaction, sign int64) map[int]decimal.Decimal {
	result := map[int]decimal.Decimal{}
	if t == nil || t.WalletId == nil || t.Actual.IsZero() {
		return result
	}
	amount := t.Actual.Mul(decimal.NewFromInt(sign))
	switch t.Kind {
	case KindIncome:
		result[*t.WalletId] = amount
	case KindExpense:
		result[*t.WalletId] = amount.Neg()
	case KindTransfer:
		result[*t.WalletId] = amount.Neg()
		if t.ToWalletId != nil {
			result[*t.ToWalletId] = result[*t.ToWalletId].Add(amount)
		}
	}
	return result
}

// netEffects undoes original and applies updated as one delta per wallet, debits first.
func netEffects(original, updated *Transaction) []walletEffect {
	reverse := effectsOf(original, -1)
	apply := effectsOf(updated, 1)

	var effects []walletEffect
	for id, delta := range apply {
		effects = append(effects, walletEffect{walletId: id, delta: delta.Add(reverse[id])})
	}
	for id, delta := range reverse {
		if _, ok := apply[id]; !ok {
			effects = append(effects, walletEffect{walletId: id, delta: delta, reversalOnly: true})
		}
	}
	sort.Slice(effects, func(i, j int) bool {
		if c := effects[i].delta.Cmp(effects[j].delta); c != 0 {
			return c < 0
		}
		return effects[i].walletId < effects[j].walletId
	})
	return effects
}

func (s *ServiceImpl) applyWalletEffects(ctx context.Context, original, updated *Transaction, reason string) ([]audit.Entry, error) {
	var entries []audit.Entry
	for _, effect := range netEffects(original, updated) {
		if effect.delta.IsZero() {
			continue
		}
		result, err := s.wallets.Adjust(ctx, effect.walletId, effect.delta, reason)
		if errors.Is(err, wallet.ErrWalletNotFound) && effect.reversalOnly {
			log.Warnf("wallet %d no longer exists, skipping reversal of %s", effect.walletId, effect.delta.StringFixed(2))
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, result.Entry)
	}
	return entries, nil
}

func (s *ServiceImpl) applyGoalEffects(ctx context.Context, original, updated *Transaction) error {
	if s.goals == nil {
		return nil
	}
	deltas := map[int]decimal.Decimal{}
	if original != nil && original.GoalId != nil {
		deltas[*original.GoalId] = deltas[*original.GoalId].Sub(original.Actual)
	}
	if updated != nil && updated.GoalId != nil {
		deltas[*updated.GoalId] = deltas[*updated.GoalId].Add(updated.Actual)
	}
	ids := make([]int, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		if err := s.goals.Contribute(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) announce(ctx context.Context, entries []audit.Entry) {
	if s.announcer != nil && len(entries) > 0 {
		s.announcer.Announce(ctx, entries...)
	}
}

func (s *ServiceImpl) publishChanged(ctx context.Context, userId int, transactionId int, from Period) {
	if s.eventBus == nil {
		return
	}
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.TransactionChangedEvent, event_bus.TransactionChanged{
		UserId:        userId,
		TransactionId: transactionId,
		Month:         from.Month,
		Year:          from.Year,
	}))
	if err != nil {
		// the transaction is committed, the chain can be recomputed on demand
		log.Errorf("failed to propagate change of transaction %d from %s: %v", transactionId, from, err)
	}
}
