package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEntry() event_bus.AuditEntryAppended {
	return event_bus.AuditEntryAppended{
		Id:              uuid.New(),
		UserId:          42,
		EntityType:      "wallet",
		EntityId:        7,
		EntityName:      "Cash",
		ChangeType:      "balance_change",
		PreviousBalance: decimal.NewFromInt(100),
		NewBalance:      decimal.RequireFromString("87.5"),
		ChangeAmount:    decimal.RequireFromString("-12.5"),
		Reason:          "Transaction: Lunch",
		Timestamp:       time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_ForwardsAuditEntries(t *testing.T) {
	// given
	writer := &recordingWriter{}
	publisher := NewPublisherWithWriter(writer)
	bus := event_bus.NewEventBus()
	publisher.Subscribe(bus)
	entry := sampleEntry()

	// when
	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.AuditEntryAppendedEvent, entry))

	// then
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "42", string(writer.messages[0].Key))
	var message AuditMessage
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &message))
	assert.Equal(t, entry.Id.String(), message.Id)
	assert.Equal(t, "balance_change", message.ChangeType)
	assert.Equal(t, "-12.5", message.ChangeAmount)
	assert.Equal(t, "87.5", message.NewBalance)
	assert.Equal(t, entry.Timestamp, message.Timestamp)
}

func TestPublisher_IgnoresOtherEvents(t *testing.T) {
	// given
	writer := &recordingWriter{}
	bus := event_bus.NewEventBus()
	NewPublisherWithWriter(writer).Subscribe(bus)

	// when
	err := bus.Publish(event_bus.NewEvent(context.Background(), event_bus.TransactionChangedEvent, event_bus.TransactionChanged{UserId: 1}))

	// then
	require.NoError(t, err)
	assert.Empty(t, writer.messages)
}

func TestPublisher_WriterFailure(t *testing.T) {
	// given
	writer := &recordingWriter{err: errors.New("broker unavailable")}
	publisher := NewPublisherWithWriter(writer)

	// when
	err := publisher.PublishAudit(context.Background(), sampleEntry())

	// then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}
