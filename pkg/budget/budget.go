package budget

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrBudgetNotFound      = errors.New("budget month not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

// Kind decides how a transaction is aggregated. Category is only a label.
type Kind string

const (
	KindExpense  Kind = "expense"
	KindIncome   Kind = "income"
	KindTransfer Kind = "transfer"
)

const (
	CategorySavings           = "Savings"
	CategoryTransfer          = "Transfer"
	CategoryBalanceAdjustment = "Balance Adjustment"
)

// legacyIncomeCategories classify stored rows written before transactions had a kind.
var legacyIncomeCategories = []string{
	"salary", "income", "freelance", "business", "investment", "bonus", "gift", "refund", "interest", "other income",
}

// NormalizeKind maps a stored or submitted kind onto the canonical variants.
// "savings" is the old name of transfer. Rows without a kind are classified by category.
func NormalizeKind(raw string, category string) (Kind, error) {
	switch k := strings.ToLower(strings.TrimSpace(raw)); k {
	case string(KindExpense), string(KindIncome), string(KindTransfer):
		return Kind(k), nil
	case "savings":
		return KindTransfer, nil
	case "":
		if slices.Contains(legacyIncomeCategories, strings.ToLower(strings.TrimSpace(category))) {
			return KindIncome, nil
		}
		return KindExpense, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, raw)
	}
}

// Period identifies a budget month.
type Period struct {
	Month int
	Year  int
}

func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year > 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

type Month struct {
	Id              int
	UserId          int
	Period          Period
	RolloverPlanned decimal.Decimal
	RolloverActual  decimal.Decimal
	Transactions    []Transaction
}

type Transaction struct {
	Id       int
	BudgetId int
	Name     string
	Category string
	Planned  decimal.Decimal
	Actual   decimal.Decimal
	Date     time.Time
	// Time is an optional "HH:MM" wall clock time.
	Time       string
	Kind       Kind
	WalletId   *int
	ToWalletId *int
	GoalId     *int
}

func (t Transaction) Period() Period {
	return PeriodOf(t.Date)
}

// Summary aggregates the actual amounts of a month. Transfers are not counted anywhere.
type Summary struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Savings  decimal.Decimal
}

func Summarize(transactions []Transaction) Summary {
	s := Summary{Income: decimal.Zero, Expenses: decimal.Zero, Savings: decimal.Zero}
	for _, t := range transactions {
		switch t.Kind {
		case KindIncome:
			s.Income = s.Income.Add(t.Actual)
		case KindExpense:
			switch t.Category {
			case CategorySavings:
				s.Savings = s.Savings.Add(t.Actual)
			case CategoryTransfer:
			default:
				s.Expenses = s.Expenses.Add(t.Actual)
			}
		}
	}
	return s
}

// Net is what the month adds to the running balance.
func (s Summary) Net() decimal.Decimal {
	return s.Income.Sub(s.Expenses).Sub(s.Savings)
}

func validate(t *Transaction) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTransaction)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidTransaction)
	}
	if t.Actual.IsNegative() || t.Planned.IsNegative() {
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidTransaction)
	}
	if t.Time != "" {
		if _, err := time.Parse("15:04", t.Time); err != nil {
			return fmt.Errorf("%w: time must be HH:MM", ErrInvalidTransaction)
		}
	}
	kind, err := NormalizeKind(string(t.Kind), t.Category)
	if err != nil {
		return err
	}
	t.Kind = kind
	if t.Kind == KindTransfer {
		if t.WalletId == nil || t.ToWalletId == nil {
			return fmt.Errorf("%w: transfer needs source and destination wallets", ErrInvalidTransaction)
		}
		if *t.WalletId == *t.ToWalletId {
			return fmt.Errorf("%w: transfer wallets must differ", ErrInvalidTransaction)
		}
	} else {
		t.ToWalletId = nil
	}
	return nil
}
