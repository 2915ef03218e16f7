package loan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound    = errors.New("loan not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrLoanSettled     = errors.New("loan is already settled")
	ErrInvalidLoan     = errors.New("invalid loan")
	// ErrPaymentExceedsRemaining is an ErrInvalidAmount.
	ErrPaymentExceedsRemaining = fmt.Errorf("%w: payment exceeds remaining amount", ErrInvalidAmount)
)

// Direction is seen from the owner: given means the owner lent the money.
type Direction string

const (
	Given    Direction = "given"
	Received Direction = "received"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Given, Received:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidLoan, s)
	}
}

type Status string

const (
	StatusActive  Status = "active"
	StatusSettled Status = "settled"
)

type EntryKind string

const (
	KindPayment EntryKind = "payment"
	KindTopUp   EntryKind = "topup"
)

type Entry struct {
	Id     uuid.UUID
	Kind   EntryKind
	Amount decimal.Decimal
	Date   time.Time
	Note   string
}

type Loan struct {
	Id              int
	UserId          int
	PersonName      string
	Direction       Direction
	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          Status
	WalletId        *int
	Payments        []Entry
	TopUps          []Entry
	Created         time.Time
}

// NewLoan is a request to lend or borrow money.
type NewLoan struct {
	PersonName string
	Direction  Direction
	Amount     decimal.Decimal
	WalletId   *int
	Note       string
}

func (l *Loan) topUp(amount decimal.Decimal, at time.Time, note string) Entry {
	entry := Entry{Id: uuid.New(), Kind: KindTopUp, Amount: amount, Date: at, Note: note}
	l.TopUps = append(l.TopUps, entry)
	l.TotalAmount = l.TotalAmount.Add(amount)
	l.RemainingAmount = l.RemainingAmount.Add(amount)
	l.Status = StatusActive
	return entry
}

func (l *Loan) pay(amount decimal.Decimal, at time.Time, note string) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, fmt.Errorf("%w: payment must be positive", ErrInvalidAmount)
	}
	if l.Status == StatusSettled {
		return Entry{}, ErrLoanSettled
	}
	if amount.GreaterThan(l.RemainingAmount) {
		return Entry{}, fmt.Errorf("%w: %s left, %s paid", ErrPaymentExceedsRemaining,
			l.RemainingAmount.StringFixed(2), amount.StringFixed(2))
	}
	entry := Entry{Id: uuid.New(), Kind: KindPayment, Amount: amount, Date: at, Note: note}
	l.Payments = append(l.Payments, entry)
	l.RemainingAmount = decimal.Max(l.RemainingAmount.Sub(amount), decimal.Zero)
	l.settle()
	return entry, nil
}

func (l *Loan) removePayment(id uuid.UUID) (Entry, error) {
	for i, p := range l.Payments {
		if p.Id != id {
			continue
		}
		l.Payments = append(l.Payments[:i:i], l.Payments[i+1:]...)
		l.RemainingAmount = decimal.Min(l.RemainingAmount.Add(p.Amount), l.TotalAmount)
		l.settle()
		return p, nil
	}
	return Entry{}, ErrPaymentNotFound
}

func (l *Loan) settle() {
	if l.RemainingAmount.IsZero() {
		l.Status = StatusSettled
	} else {
		l.Status = StatusActive
	}
}

// lentDelta is the wallet movement when the principal grows by amount.
// Repayments move the wallet the other way.
func lentDelta(direction Direction, amount decimal.Decimal) decimal.Decimal {
	if direction == Given {
		return amount.Neg()
	}
	return amount
}
