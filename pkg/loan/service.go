package loan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// WalletAdjuster is the part of wallet.Ledger loans move money with.
type WalletAdjuster interface {
	Adjust(ctx context.Context, walletId int, delta decimal.Decimal, reason string) (wallet.AdjustResult, error)
}

type Service interface {
	// CreateLoan opens a loan, or tops up the active loan with the same person, direction and wallet link.
	// Loans linked to different wallets stay separate so every reversal hits the wallet that paid.
	CreateLoan(ctx context.Context, req NewLoan) (Loan, error)
	GetLoan(ctx context.Context, id int) (Loan, error)
	ListLoans(ctx context.Context) ([]Loan, error)
	AddPayment(ctx context.Context, loanId int, amount decimal.Decimal, note string) (Loan, error)
	RemovePayment(ctx context.Context, loanId int, paymentId uuid.UUID) (Loan, error)
	AddTopUp(ctx context.Context, loanId int, amount decimal.Decimal, note string) (Loan, error)
	DeleteLoan(ctx context.Context, id int) error
}

type ServiceImpl struct {
	repo     Repository
	tx       database.Transactor
	wallets  WalletAdjuster
	audit    audit.Service
	eventBus *event_bus.EventBus
	clock    utils.Clock
}

func NewService(repo Repository, tx database.Transactor, wallets WalletAdjuster, auditService audit.Service,
	eventBus *event_bus.EventBus, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, tx: tx, wallets: wallets, audit: auditService, eventBus: eventBus, clock: clock}
}

// unit collects what an operation publishes once its unit of work has committed.
type unit struct {
	userId   int
	owner    bool
	entries  []audit.Entry
	statuses []event_bus.LoanStatusChanged
}

func (s *ServiceImpl) begin(ctx context.Context) (*unit, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &unit{userId: userId, owner: !database.InTransaction(ctx)}, nil
}

func (s *ServiceImpl) CreateLoan(ctx context.Context, req NewLoan) (Loan, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return Loan{}, err
	}
	req.PersonName = strings.TrimSpace(req.PersonName)
	if req.PersonName == "" {
		return Loan{}, fmt.Errorf("%w: person name is required", ErrInvalidLoan)
	}
	if req.Direction, err = ParseDirection(string(req.Direction)); err != nil {
		return Loan{}, err
	}
	if !req.Amount.IsPositive() {
		return Loan{}, fmt.Errorf("%w: loan amount must be positive", ErrInvalidAmount)
	}

	var result Loan
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, found, err := s.repo.FindActive(ctx, u.userId, req.PersonName, req.Direction, req.WalletId)
		if err != nil {
			return err
		}

		if req.WalletId != nil {
			reason := fmt.Sprintf("Loan %s: %s", req.Direction, req.PersonName)
			if err := s.adjust(ctx, u, *req.WalletId, lentDelta(req.Direction, req.Amount), reason, false); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		if found {
			previous := existing.RemainingAmount
			entry := existing.topUp(req.Amount, now, req.Note)
			if err := s.repo.AddEntry(ctx, existing.Id, entry); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, u.userId, existing); err != nil {
				return err
			}
			log.Infof("consolidated %s loan with %s into loan %d", req.Direction, req.PersonName, existing.Id)
			result = existing
			return s.record(ctx, u, existing, audit.LoanTopUp, previous, "Loan topped up")
		}

		l := Loan{
			PersonName:      req.PersonName,
			Direction:       req.Direction,
			TotalAmount:     decimal.Zero,
			RemainingAmount: decimal.Zero,
			WalletId:        req.WalletId,
			Created:         now,
		}
		l.topUp(req.Amount, now, req.Note)
		l, err = s.repo.Create(ctx, u.userId, l)
		if err != nil {
			return err
		}
		result = l
		return s.record(ctx, u, l, audit.LoanCreated, decimal.Zero, "Loan created")
	})
	if err != nil {
		return Loan{}, err
	}
	s.finish(ctx, u)
	return result, nil
}

func (s *ServiceImpl) GetLoan(ctx context.Context, id int) (Loan, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Loan{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, userId, id)
}

func (s *ServiceImpl) ListLoans(ctx context.Context) ([]Loan, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId)
}

func (s *ServiceImpl) AddPayment(ctx context.Context, loanId int, amount decimal.Decimal, note string) (Loan, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return Loan{}, err
	}

	var result Loan
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.Get(ctx, u.userId, loanId)
		if err != nil {
			return err
		}
		previous, previousStatus := l.RemainingAmount, l.Status
		entry, err := l.pay(amount, s.clock.Now(), note)
		if err != nil {
			return err
		}

		if l.WalletId != nil {
			reason := fmt.Sprintf("Loan payment: %s", l.PersonName)
			if err := s.adjust(ctx, u, *l.WalletId, lentDelta(l.Direction, amount).Neg(), reason, false); err != nil {
				return err
			}
		}
		if err := s.repo.AddEntry(ctx, l.Id, entry); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, u.userId, l); err != nil {
			return err
		}
		s.statusChanged(u, l, previousStatus)
		result = l
		return s.record(ctx, u, l, audit.LoanPayment, previous, note)
	})
	if err != nil {
		return Loan{}, err
	}
	s.finish(ctx, u)
	return result, nil
}

func (s *ServiceImpl) RemovePayment(ctx context.Context, loanId int, paymentId uuid.UUID) (Loan, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return Loan{}, err
	}

	var result Loan
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.Get(ctx, u.userId, loanId)
		if err != nil {
			return err
		}
		previous, previousStatus := l.RemainingAmount, l.Status
		payment, err := l.removePayment(paymentId)
		if err != nil {
			return err
		}

		if l.WalletId != nil {
			reason := fmt.Sprintf("Loan payment removed: %s", l.PersonName)
			if err := s.adjust(ctx, u, *l.WalletId, lentDelta(l.Direction, payment.Amount), reason, true); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteEntry(ctx, l.Id, payment.Id); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, u.userId, l); err != nil {
			return err
		}
		s.statusChanged(u, l, previousStatus)
		result = l
		return s.record(ctx, u, l, audit.LoanPaymentRemoved, previous, "Payment removed")
	})
	if err != nil {
		return Loan{}, err
	}
	s.finish(ctx, u)
	return result, nil
}

func (s *ServiceImpl) AddTopUp(ctx context.Context, loanId int, amount decimal.Decimal, note string) (Loan, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return Loan{}, err
	}
	if !amount.IsPositive() {
		return Loan{}, fmt.Errorf("%w: top-up must be positive", ErrInvalidAmount)
	}

	var result Loan
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.Get(ctx, u.userId, loanId)
		if err != nil {
			return err
		}
		if l.WalletId != nil {
			reason := fmt.Sprintf("Loan top-up: %s", l.PersonName)
			if err := s.adjust(ctx, u, *l.WalletId, lentDelta(l.Direction, amount), reason, false); err != nil {
				return err
			}
		}
		previous, previousStatus := l.RemainingAmount, l.Status
		entry := l.topUp(amount, s.clock.Now(), note)
		if err := s.repo.AddEntry(ctx, l.Id, entry); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, u.userId, l); err != nil {
			return err
		}
		s.statusChanged(u, l, previousStatus)
		result = l
		return s.record(ctx, u, l, audit.LoanTopUp, previous, note)
	})
	if err != nil {
		return Loan{}, err
	}
	s.finish(ctx, u)
	return result, nil
}

func (s *ServiceImpl) DeleteLoan(ctx context.Context, id int) error {
	u, err := s.begin(ctx)
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.Get(ctx, u.userId, id)
		if err != nil {
			return err
		}
		if l.Status == StatusActive && l.WalletId != nil && l.RemainingAmount.IsPositive() {
			reason := fmt.Sprintf("Loan deleted: %s", l.PersonName)
			if err := s.adjust(ctx, u, *l.WalletId, lentDelta(l.Direction, l.RemainingAmount).Neg(), reason, true); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, u.userId, l.Id); err != nil {
			return err
		}
		previous := l.RemainingAmount
		l.RemainingAmount = decimal.Zero
		return s.record(ctx, u, l, audit.LoanDeleted, previous, "Loan deleted")
	})
	if err != nil {
		return err
	}
	s.finish(ctx, u)
	return nil
}

// adjust moves the linked wallet. Reversals against a wallet that no longer exists are skipped.
func (s *ServiceImpl) adjust(ctx context.Context, u *unit, walletId int, delta decimal.Decimal, reason string, reversal bool) error {
	result, err := s.wallets.Adjust(ctx, walletId, delta, reason)
	if reversal && errors.Is(err, wallet.ErrWalletNotFound) {
		log.Warnf("wallet %d no longer exists, skipping loan reversal of %s", walletId, delta.StringFixed(2))
		return nil
	}
	if err != nil {
		return err
	}
	u.entries = append(u.entries, result.Entry)
	return nil
}

func (s *ServiceImpl) record(ctx context.Context, u *unit, l Loan, changeType audit.ChangeType, previous decimal.Decimal, reason string) error {
	entry, err := s.audit.Record(ctx, audit.Entry{
		EntityType:      audit.EntityLoan,
		EntityId:        l.Id,
		EntityName:      l.PersonName,
		ChangeType:      changeType,
		PreviousBalance: previous,
		NewBalance:      l.RemainingAmount,
		ChangeAmount:    l.RemainingAmount.Sub(previous),
		Reason:          reason,
	})
	if err != nil {
		return err
	}
	u.entries = append(u.entries, entry)
	return nil
}

func (s *ServiceImpl) statusChanged(u *unit, l Loan, previous Status) {
	if l.Status == previous {
		return
	}
	u.statuses = append(u.statuses, event_bus.LoanStatusChanged{
		UserId:     u.userId,
		LoanId:     l.Id,
		PersonName: l.PersonName,
		From:       string(previous),
		To:         string(l.Status),
	})
}

// finish publishes after commit. Nested units leave it to the outermost caller.
func (s *ServiceImpl) finish(ctx context.Context, u *unit) {
	if !u.owner {
		return
	}
	s.audit.Announce(ctx, u.entries...)
	if s.eventBus == nil {
		return
	}
	for _, change := range u.statuses {
		if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.LoanStatusChangedEvent, change)); err != nil {
			log.Errorf("failed to publish status change of loan %d: %v", change.LoanId, err)
		}
	}
}
