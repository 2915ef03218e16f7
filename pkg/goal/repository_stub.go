package goal

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type StubRepository struct {
	mu     sync.Mutex
	nextId int
	goals  map[int]Goal
}

func NewStubRepository() *StubRepository {
	return &StubRepository{nextId: 1, goals: map[int]Goal{}}
}

func (s *StubRepository) Create(ctx context.Context, userId int, g Goal) (Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.Id = s.nextId
	g.UserId = userId
	s.nextId++
	s.goals[g.Id] = g
	return g, nil
}

func (s *StubRepository) Get(ctx context.Context, userId int, id int) (Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserId != userId {
		return Goal{}, ErrGoalNotFound
	}
	return g, nil
}

func (s *StubRepository) List(ctx context.Context, userId int) ([]Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Goal
	for _, g := range s.goals {
		if g.UserId == userId {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *StubRepository) UpdateStatus(ctx context.Context, userId int, id int, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserId != userId {
		return ErrGoalNotFound
	}
	g.Status = status
	s.goals[id] = g
	return nil
}

func (s *StubRepository) AddToCurrent(ctx context.Context, userId int, id int, delta decimal.Decimal) (Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserId != userId {
		return Goal{}, ErrGoalNotFound
	}
	g.CurrentAmount = decimal.Max(g.CurrentAmount.Add(delta), decimal.Zero)
	s.goals[id] = g
	return g, nil
}
