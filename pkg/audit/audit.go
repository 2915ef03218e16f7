package audit

import (
	"time"

	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntityType string

const (
	EntityWallet EntityType = "wallet"
	EntityLoan   EntityType = "loan"
)

type ChangeType string

const (
	BalanceChange      ChangeType = "balance_change"
	WalletCreated      ChangeType = "wallet_created"
	WalletUpdated      ChangeType = "wallet_updated"
	WalletDeleted      ChangeType = "wallet_deleted"
	LoanCreated        ChangeType = "loan_created"
	LoanTopUp          ChangeType = "loan_topup"
	LoanPayment        ChangeType = "loan_payment"
	LoanPaymentRemoved ChangeType = "loan_payment_removed"
	LoanDeleted        ChangeType = "loan_deleted"
)

// Entry is an immutable record of one balance-affecting mutation.
// For wallets the balances are wallet balances, for loans remaining amounts.
type Entry struct {
	Id              uuid.UUID
	UserId          int
	EntityType      EntityType
	EntityId        int
	EntityName      string
	ChangeType      ChangeType
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	ChangeAmount    decimal.Decimal
	Reason          string
	Timestamp       time.Time
}

type Filter struct {
	EntityType EntityType
	EntityId   int
	Limit      int
}

func (e Entry) event() event_bus.AuditEntryAppended {
	return event_bus.AuditEntryAppended{
		Id:              e.Id,
		UserId:          e.UserId,
		EntityType:      string(e.EntityType),
		EntityId:        e.EntityId,
		EntityName:      e.EntityName,
		ChangeType:      string(e.ChangeType),
		PreviousBalance: e.PreviousBalance,
		NewBalance:      e.NewBalance,
		ChangeAmount:    e.ChangeAmount,
		Reason:          e.Reason,
		Timestamp:       e.Timestamp,
	}
}
