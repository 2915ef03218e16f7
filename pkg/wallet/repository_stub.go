package wallet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/shopspring/decimal"
)

// StubRepository keeps wallets in memory. Balance changes and their audit
// entries are applied together: a failed append restores the balance.
type StubRepository struct {
	mu      sync.Mutex
	nextId  int
	wallets map[int]Wallet
	audit   audit.Appender
}

func NewStubRepository(auditAppender audit.Appender) *StubRepository {
	return &StubRepository{nextId: 1, wallets: map[int]Wallet{}, audit: auditAppender}
}

func (s *StubRepository) Create(ctx context.Context, userId int, w Wallet, entry audit.Entry) (Wallet, audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Id = s.nextId
	w.UserId = userId
	w.Balance = w.InitialBalance
	w.Position = (len(s.ownedBy(userId)) + 1) * 100

	entry.EntityId = w.Id
	entry.EntityName = w.Name
	entry.PreviousBalance = decimal.Zero
	entry.NewBalance = w.Balance
	entry.ChangeAmount = decimal.Zero
	if err := s.audit.Append(ctx, entry); err != nil {
		return Wallet{}, audit.Entry{}, fmt.Errorf("%w: %w", ErrConsistency, err)
	}

	s.nextId++
	if w.IsSavingsWallet {
		s.clearSavingsFlag(userId, 0)
	}
	s.wallets[w.Id] = w
	return w, entry, nil
}

func (s *StubRepository) Get(ctx context.Context, userId int, id int) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok || w.UserId != userId {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *StubRepository) List(ctx context.Context, userId int) ([]Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedBy(userId), nil
}

func (s *StubRepository) UpdateDetails(ctx context.Context, userId int, w Wallet) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.wallets[w.Id]
	if !ok || existing.UserId != userId {
		return Wallet{}, ErrWalletNotFound
	}
	if w.IsSavingsWallet {
		s.clearSavingsFlag(userId, w.Id)
	}
	existing.Name = w.Name
	existing.Type = w.Type
	existing.IsSavingsWallet = w.IsSavingsWallet
	existing.Position = w.Position
	s.wallets[w.Id] = existing
	return existing, nil
}

func (s *StubRepository) Apply(ctx context.Context, userId int, cmd Adjustment) (AdjustResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[cmd.WalletId]
	if !ok || w.UserId != userId {
		return AdjustResult{}, ErrWalletNotFound
	}

	previous := w.Balance
	next, err := cmd.apply(previous)
	if err != nil {
		return AdjustResult{}, err
	}
	w.Balance = next
	s.wallets[w.Id] = w

	entry := cmd.entry(userId, w, previous, next)
	if err := s.audit.Append(ctx, entry); err != nil {
		w.Balance = previous
		s.wallets[w.Id] = w
		return AdjustResult{}, fmt.Errorf("%w: %w", ErrConsistency, err)
	}
	return AdjustResult{Wallet: w, PreviousBalance: previous, NewBalance: next, Entry: entry}, nil
}

func (s *StubRepository) Delete(ctx context.Context, userId int, id int, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok || w.UserId != userId {
		return audit.Entry{}, ErrWalletNotFound
	}
	entry = deletionEntry(entry, w)
	if err := s.audit.Append(ctx, entry); err != nil {
		return audit.Entry{}, fmt.Errorf("%w: %w", ErrConsistency, err)
	}
	delete(s.wallets, id)
	return entry, nil
}

// Put stores w as is, bypassing the audit trail. Used to set up drifted states in tests.
func (s *StubRepository) Put(w Wallet) Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.Id == 0 {
		w.Id = s.nextId
	}
	if w.Id >= s.nextId {
		s.nextId = w.Id + 1
	}
	s.wallets[w.Id] = w
	return w
}

func (s *StubRepository) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId = 1
	s.wallets = map[int]Wallet{}
}

func (s *StubRepository) ownedBy(userId int) []Wallet {
	var result []Wallet
	for _, w := range s.wallets {
		if w.UserId == userId {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].Id < result[j].Id
	})
	return result
}

func (s *StubRepository) clearSavingsFlag(userId int, exceptId int) {
	for id, w := range s.wallets {
		if w.UserId == userId && id != exceptId && w.IsSavingsWallet {
			w.IsSavingsWallet = false
			s.wallets[id] = w
		}
	}
}
