package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// MessageWriter is the part of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditMessage is the wire form of an audit entry on the stream.
type AuditMessage struct {
	Id              string    `json:"id"`
	UserId          int       `json:"userId"`
	EntityType      string    `json:"entityType"`
	EntityId        int       `json:"entityId"`
	EntityName      string    `json:"entityName"`
	ChangeType      string    `json:"changeType"`
	PreviousBalance string    `json:"previousBalance"`
	NewBalance      string    `json:"newBalance"`
	ChangeAmount    string    `json:"changeAmount"`
	Reason          string    `json:"reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher mirrors committed audit entries to a Kafka topic.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(cfg config.Kafka) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	})
}

func NewPublisherWithWriter(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Subscribe forwards every appended audit entry. Messages are keyed by user so one
// user's entries stay ordered within a partition.
func (p *Publisher) Subscribe(bus *event_bus.EventBus) func() {
	return event_bus.SubscribeTyped(bus, event_bus.AuditEntryAppendedEvent, func(e event_bus.EventT[event_bus.AuditEntryAppended]) error {
		return p.PublishAudit(e.Context(), e.Data)
	})
}

func (p *Publisher) PublishAudit(ctx context.Context, entry event_bus.AuditEntryAppended) error {
	data, err := json.Marshal(AuditMessage{
		Id:              entry.Id.String(),
		UserId:          entry.UserId,
		EntityType:      entry.EntityType,
		EntityId:        entry.EntityId,
		EntityName:      entry.EntityName,
		ChangeType:      entry.ChangeType,
		PreviousBalance: entry.PreviousBalance.String(),
		NewBalance:      entry.NewBalance.String(),
		ChangeAmount:    entry.ChangeAmount.String(),
		Reason:          entry.Reason,
		Timestamp:       entry.Timestamp,
	})
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(entry.UserId)),
		Value: data,
	})
	if err != nil {
		log.Errorf("failed to publish audit entry %s: %v", entry.Id, err)
		return fmt.Errorf("publish audit entry: %w", err)
	}
	log.Debugf("published audit entry %s", entry.Id)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
