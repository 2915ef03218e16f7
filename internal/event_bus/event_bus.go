package event_bus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type EventType string

// Event carries one ledger, loan or audit payload through the bus.
type Event struct {
	ctx       context.Context
	Type      EventType
	Timestamp time.Time
	Data      any
}

func NewEvent(ctx context.Context, eventType EventType, data any) Event {
	return Event{ctx: ctx, Type: eventType, Timestamp: time.Now(), Data: data}
}

// Context carries the current user and, when published inside a unit of work, the open
// database transaction. Handlers must use it.
func (e Event) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// EventT is the envelope typed handlers receive.
type EventT[T any] struct {
	ctx       context.Context
	Type      EventType
	Timestamp time.Time
	Data      T
}

func (e EventT[T]) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

type handler func(Event) error

type subscription struct {
	id     uint64
	handle handler
}

// EventBus dispatches synchronously: when Publish returns, every subscriber has run,
// e.g. the rollover chain has been recomputed after a transaction change.
type EventBus struct {
	mu     sync.RWMutex
	nextId uint64
	subs   map[EventType][]subscription
}

func NewEventBus() *EventBus {
	return &EventBus{subs: map[EventType][]subscription{}}
}

// Subscribe appends h to the handlers of eventType. Handlers run in registration order.
func (eb *EventBus) Subscribe(eventType EventType, h func(Event) error) (unsubscribe func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextId++
	id := eb.nextId
	eb.subs[eventType] = append(eb.subs[eventType], subscription{id: id, handle: h})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		remaining := slices.DeleteFunc(slices.Clone(eb.subs[eventType]), func(s subscription) bool { return s.id == id })
		if len(remaining) == 0 {
			delete(eb.subs, eventType)
			return
		}
		eb.subs[eventType] = remaining
	}
}

// SubscribeTyped registers h for payloads of type T. Events carrying anything else are skipped.
//
//	event_bus.SubscribeTyped(bus, event_bus.TransactionChangedEvent,
//	    func(e event_bus.EventT[event_bus.TransactionChanged]) error {
//	        log.Infof("transaction %d changed", e.Data.TransactionId)
//	        return nil
//	    })
func SubscribeTyped[T any](eb *EventBus, eventType EventType, h func(EventT[T]) error) (unsubscribe func()) {
	return eb.Subscribe(eventType, func(e Event) error {
		payload, ok := e.Data.(T)
		if !ok {
			log.Debugf("event %s: expected %T payload, got %T", eventType, *new(T), e.Data)
			return nil
		}
		return h(EventT[T]{ctx: e.ctx, Type: e.Type, Timestamp: e.Timestamp, Data: payload})
	})
}

// Publish runs every handler of e.Type. A failing or panicking handler does not stop the
// others; all failures are joined into the returned error. A cancelled context stops dispatch.
func (eb *EventBus) Publish(e Event) error {
	if err := e.Context().Err(); err != nil {
		return fmt.Errorf("event %s: context cancelled before publish: %w", e.Type, err)
	}

	eb.mu.RLock()
	subs := slices.Clone(eb.subs[e.Type])
	eb.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := e.Context().Err(); err != nil {
			errs = append(errs, fmt.Errorf("context cancelled during event processing: %w", err))
			break
		}
		if err := dispatch(s, e); err != nil {
			log.Errorf("event %s: handler %d failed: %v", e.Type, s.id, err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("event %s: %d handler(s) failed: %w", e.Type, len(errs), errors.Join(errs...))
	}
	return nil
}

func dispatch(s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %d panicked on event %s: %v", s.id, e.Type, r)
		}
	}()
	return s.handle(e)
}
