package loan

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type StubRepository struct {
	mu     sync.Mutex
	nextId int
	loans  map[int]Loan
	// FailOnUpdate, when set, makes Update fail with it.
	FailOnUpdate error
}

func NewStubRepository() *StubRepository {
	return &StubRepository{nextId: 1, loans: map[int]Loan{}}
}

func (s *StubRepository) FindActive(ctx context.Context, userId int, personName string, direction Direction, walletId *int) (Loan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.loans))
	for id := range s.loans {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		l := s.loans[id]
		if l.UserId == userId && strings.EqualFold(l.PersonName, personName) && l.Direction == direction && l.Status == StatusActive &&
			sameWallet(l.WalletId, walletId) {
			return clone(l), true, nil
		}
	}
	return Loan{}, false, nil
}

func (s *StubRepository) Get(ctx context.Context, userId int, id int) (Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok || l.UserId != userId {
		return Loan{}, ErrLoanNotFound
	}
	return clone(l), nil
}

func (s *StubRepository) List(ctx context.Context, userId int) ([]Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Loan
	for _, l := range s.loans {
		if l.UserId == userId {
			result = append(result, clone(l))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *StubRepository) Create(ctx context.Context, userId int, l Loan) (Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.Id = s.nextId
	l.UserId = userId
	s.nextId++
	s.loans[l.Id] = clone(l)
	return l, nil
}

func (s *StubRepository) Update(ctx context.Context, userId int, l Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOnUpdate != nil {
		return s.FailOnUpdate
	}
	existing, ok := s.loans[l.Id]
	if !ok || existing.UserId != userId {
		return ErrLoanNotFound
	}
	existing.TotalAmount = l.TotalAmount
	existing.RemainingAmount = l.RemainingAmount
	existing.Status = l.Status
	existing.WalletId = l.WalletId
	s.loans[l.Id] = existing
	return nil
}

func (s *StubRepository) AddEntry(ctx context.Context, loanId int, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanId]
	if !ok {
		return ErrLoanNotFound
	}
	if e.Kind == KindPayment {
		l.Payments = append(l.Payments, e)
	} else {
		l.TopUps = append(l.TopUps, e)
	}
	s.loans[loanId] = l
	return nil
}

func (s *StubRepository) DeleteEntry(ctx context.Context, loanId int, entryId uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanId]
	if !ok {
		return ErrLoanNotFound
	}
	before := len(l.Payments)
	l.Payments = slices.DeleteFunc(l.Payments, func(e Entry) bool { return e.Id == entryId })
	if len(l.Payments) == before {
		return ErrPaymentNotFound
	}
	s.loans[loanId] = l
	return nil
}

func (s *StubRepository) Delete(ctx context.Context, userId int, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok || l.UserId != userId {
		return ErrLoanNotFound
	}
	delete(s.loans, id)
	return nil
}

func sameWallet(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clone(l Loan) Loan {
	l.Payments = slices.Clone(l.Payments)
	l.TopUps = slices.Clone(l.TopUps)
	return l
}
