package audit

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type StubRepository struct {
	mu      sync.Mutex
	entries []Entry
	// FailWith, when set, makes every Append fail with it.
	FailWith error
}

func NewStubRepository() *StubRepository {
	return &StubRepository{}
}

func (s *StubRepository) Append(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *StubRepository) List(ctx context.Context, userId int, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Entry
	for _, e := range s.entries {
		if e.UserId != userId {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityId != 0 && e.EntityId != filter.EntityId {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *StubRepository) SumChanges(ctx context.Context, userId int, entityType EntityType, entityId int) (decimal.Decimal, error) {
	entries, _ := s.List(ctx, userId, Filter{EntityType: entityType, EntityId: entityId})
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.ChangeAmount)
	}
	return sum, nil
}

func (s *StubRepository) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.FailWith = nil
}
