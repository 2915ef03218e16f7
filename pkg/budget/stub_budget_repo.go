package budget

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type StubBudgetRepo struct {
	mu            sync.Mutex
	nextMonthId   int
	nextTxId      int
	months        map[int]Month
	transactions  map[int]transactionRow
	FailOnStore   error
	RolloverCalls int
}

type transactionRow struct {
	userId int
	tx     Transaction
}

func NewStubBudgetRepo() *StubBudgetRepo {
	return &StubBudgetRepo{nextMonthId: 1, nextTxId: 1, months: map[int]Month{}, transactions: map[int]transactionRow{}}
}

func (s *StubBudgetRepo) GetMonth(ctx context.Context, userId int, period Period) (Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.month(userId, period)
}

func (s *StubBudgetRepo) GetOrCreateMonth(ctx context.Context, userId int, period Period) (Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, err := s.month(userId, period); err == nil {
		return m, nil
	}
	m := Month{Id: s.nextMonthId, UserId: userId, Period: period, RolloverPlanned: decimal.Zero, RolloverActual: decimal.Zero}
	s.nextMonthId++
	s.months[m.Id] = m
	return m, nil
}

func (s *StubBudgetRepo) ListMonths(ctx context.Context, userId int) ([]Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Month
	for _, m := range s.months {
		if m.UserId == userId {
			m.Transactions = s.transactionsOf(m.Id)
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Period.Before(result[j].Period) })
	return result, nil
}

func (s *StubBudgetRepo) LockMonths(ctx context.Context, userId int, from Period) error {
	return nil
}

func (s *StubBudgetRepo) UpdateRollover(ctx context.Context, userId int, monthId int, actual decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.months[monthId]
	if !ok || m.UserId != userId {
		return ErrBudgetNotFound
	}
	m.RolloverActual = actual
	s.months[monthId] = m
	s.RolloverCalls++
	return nil
}

func (s *StubBudgetRepo) GetTransaction(ctx context.Context, userId int, id int) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.transactions[id]
	if !ok || row.userId != userId {
		return Transaction{}, ErrTransactionNotFound
	}
	return row.tx, nil
}

func (s *StubBudgetRepo) StoreTransaction(ctx context.Context, userId int, t Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOnStore != nil {
		return Transaction{}, s.FailOnStore
	}
	t.Id = s.nextTxId
	s.nextTxId++
	s.transactions[t.Id] = transactionRow{userId: userId, tx: t}
	return t, nil
}

func (s *StubBudgetRepo) UpdateTransaction(ctx context.Context, userId int, t Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.transactions[t.Id]
	if !ok || row.userId != userId {
		return Transaction{}, ErrTransactionNotFound
	}
	s.transactions[t.Id] = transactionRow{userId: userId, tx: t}
	return t, nil
}

func (s *StubBudgetRepo) DeleteTransaction(ctx context.Context, userId int, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.transactions[id]
	if !ok || row.userId != userId {
		return ErrTransactionNotFound
	}
	delete(s.transactions, id)
	return nil
}

// PutMonth stores m as is. Used to set up chains in tests.
func (s *StubBudgetRepo) PutMonth(m Month) Month {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Id == 0 {
		m.Id = s.nextMonthId
	}
	if m.Id >= s.nextMonthId {
		s.nextMonthId = m.Id + 1
	}
	for _, t := range m.Transactions {
		t.BudgetId = m.Id
		if t.Id == 0 {
			t.Id = s.nextTxId
		}
		if t.Id >= s.nextTxId {
			s.nextTxId = t.Id + 1
		}
		s.transactions[t.Id] = transactionRow{userId: m.UserId, tx: t}
	}
	m.Transactions = nil
	s.months[m.Id] = m
	return m
}

func (s *StubBudgetRepo) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMonthId = 1
	s.nextTxId = 1
	s.months = map[int]Month{}
	s.transactions = map[int]transactionRow{}
	s.FailOnStore = nil
	s.RolloverCalls = 0
}

func (s *StubBudgetRepo) month(userId int, period Period) (Month, error) {
	for _, m := range s.months {
		if m.UserId == userId && m.Period == period {
			m.Transactions = s.transactionsOf(m.Id)
			return m, nil
		}
	}
	return Month{}, ErrBudgetNotFound
}

func (s *StubBudgetRepo) transactionsOf(monthId int) []Transaction {
	var result []Transaction
	for _, row := range s.transactions {
		if row.tx.BudgetId == monthId {
			result = append(result, row.tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Id < result[j].Id
	})
	return result
}
