package event_bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionChangedEvent EventType = "budget.transaction.changed"
	AuditEntryAppendedEvent EventType = "audit.entry.appended"
	LoanStatusChangedEvent  EventType = "loan.status.changed"
)

// TransactionChanged is published after a transaction was created, edited or deleted.
// Month and Year point at the earliest month whose totals changed.
type TransactionChanged struct {
	UserId        int
	TransactionId int
	Month         int
	Year          int
}

type AuditEntryAppended struct {
	Id              uuid.UUID
	UserId          int
	EntityType      string
	EntityId        int
	EntityName      string
	ChangeType      string
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	ChangeAmount    decimal.Decimal
	Reason          string
	Timestamp       time.Time
}

type LoanStatusChanged struct {
	UserId     int
	LoanId     int
	PersonName string
	From       string
	To         string
}
