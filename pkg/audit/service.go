package audit

import (
	"context"
	"fmt"

	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	// Record stamps and appends entry inside the unit of work carried by ctx.
	Record(ctx context.Context, entry Entry) (Entry, error)
	// Announce publishes committed entries to the event bus.
	Announce(ctx context.Context, entries ...Entry)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	SumChanges(ctx context.Context, entityType EntityType, entityId int) (decimal.Decimal, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
	clock    utils.Clock
}

func NewService(repo Repository, eventBus *event_bus.EventBus, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, eventBus: eventBus, clock: clock}
}

// Stamp fills in the id and timestamp of an entry that does not have them yet.
func Stamp(entry Entry, clock utils.Clock) Entry {
	if entry.Id == uuid.Nil {
		entry.Id = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = clock.Now()
	}
	return entry
}

func (s *ServiceImpl) Record(ctx context.Context, entry Entry) (Entry, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	entry.UserId = userId
	entry = Stamp(entry, s.clock)
	if err := s.repo.Append(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *ServiceImpl) Announce(ctx context.Context, entries ...Entry) {
	if s.eventBus == nil {
		return
	}
	for _, entry := range entries {
		err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.AuditEntryAppendedEvent, entry.event()))
		if err != nil {
			// the entry is already committed, subscribers only mirror it
			log.Errorf("failed to announce audit entry %s: %v", entry.Id, err)
		}
	}
}

func (s *ServiceImpl) List(ctx context.Context, filter Filter) ([]Entry, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId, filter)
}

func (s *ServiceImpl) SumChanges(ctx context.Context, entityType EntityType, entityId int) (decimal.Decimal, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.SumChanges(ctx, userId, entityType, entityId)
}
