package wallet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidWallet     = errors.New("invalid wallet")
	// ErrConsistency means the balance and its audit entry could not be committed together.
	ErrConsistency = errors.New("wallet balance and audit trail could not be committed atomically")
)

type Type string

const (
	TypeCash  Type = "cash"
	TypeBank  Type = "bank"
	TypeCard  Type = "card"
	TypeMFS   Type = "mfs"
	TypeOther Type = "other"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeCash, TypeBank, TypeCard, TypeMFS, TypeOther:
		return t, nil
	case "":
		return TypeOther, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidWallet, s)
	}
}

type Wallet struct {
	Id              int
	UserId          int
	Name            string
	Type            Type
	Balance         decimal.Decimal
	InitialBalance  decimal.Decimal
	IsSavingsWallet bool
	Position        int
}

// Adjustment is a balance change command. The repository applies it together
// with its audit entry as one unit.
type Adjustment struct {
	WalletId int
	Delta    decimal.Decimal
	// Target, when valid, replaces the balance instead of moving it by Delta.
	Target     decimal.NullDecimal
	ChangeType audit.ChangeType
	Reason     string
	EntryId    uuid.UUID
	At         time.Time
}

type AdjustResult struct {
	Wallet          Wallet
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	Entry           audit.Entry
}

func (a Adjustment) entry(userId int, w Wallet, previous, next decimal.Decimal) audit.Entry {
	return audit.Entry{
		Id:              a.EntryId,
		UserId:          userId,
		EntityType:      audit.EntityWallet,
		EntityId:        w.Id,
		EntityName:      w.Name,
		ChangeType:      a.ChangeType,
		PreviousBalance: previous,
		NewBalance:      next,
		ChangeAmount:    next.Sub(previous),
		Reason:          a.Reason,
		Timestamp:       a.At,
	}
}

// apply computes the balance after a. Debits may not drive the balance below zero.
func (a Adjustment) apply(balance decimal.Decimal) (decimal.Decimal, error) {
	if a.Target.Valid {
		if a.Target.Decimal.IsNegative() {
			return balance, fmt.Errorf("%w: balance cannot be negative", ErrInvalidAmount)
		}
		return a.Target.Decimal, nil
	}
	next := balance.Add(a.Delta)
	if a.Delta.IsNegative() && next.IsNegative() {
		return balance, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds,
			balance.StringFixed(2), a.Delta.Neg().StringFixed(2))
	}
	return next, nil
}
