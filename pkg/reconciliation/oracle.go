package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrNothingToRepair = errors.New("nothing to repair")

const repairName = "Balance adjustment"

// auditWorkers bounds the per-wallet audit sums running at once.
const auditWorkers = 4

type WalletSource interface {
	ListWallets(ctx context.Context) ([]wallet.Wallet, error)
}

type BudgetSource interface {
	ListMonths(ctx context.Context) ([]budget.Month, error)
	AddTransaction(ctx context.Context, t budget.Transaction) (budget.Transaction, error)
}

type AuditSource interface {
	SumChanges(ctx context.Context, entityType audit.EntityType, entityId int) (decimal.Decimal, error)
}

// WalletCheck compares a wallet's balance with what its audit trail accounts for.
type WalletCheck struct {
	WalletId       int
	Name           string
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	AuditedChanges decimal.Decimal
	Complete       bool
}

type Report struct {
	UserId             int
	GeneratedAt        time.Time
	TotalWalletBalance decimal.Decimal
	NetFlow            decimal.Decimal
	// Discrepancy is TotalWalletBalance - NetFlow.
	Discrepancy      decimal.Decimal
	InitialBalances  decimal.Decimal
	UnexplainedDrift decimal.Decimal
	WalletCount      int
	TransactionCount int
	Drift            bool
	Wallets          []WalletCheck
}

// IncompleteWallets counts wallets whose balance is not covered by their audit trail.
func (r Report) IncompleteWallets() int {
	n := 0
	for _, w := range r.Wallets {
		if !w.Complete {
			n++
		}
	}
	return n
}

// RepairIncludesInitialBalances reports whether a repair would also book the wallets' opening balances as
// income. After such a repair the discrepancy is zero and the report shows drift of minus the opening balances.
func (r Report) RepairIncludesInitialBalances() bool {
	return r.Discrepancy.IsPositive() && r.UnexplainedDrift.LessThan(r.Discrepancy)
}

type RepairResult struct {
	Before      Report
	Transaction budget.Transaction
}

type Oracle interface {
	// Diagnose is read only.
	Diagnose(ctx context.Context, userId int) (Report, error)
	// Repair books the positive discrepancy as a synthetic income in the current month.
	// Wallet balances are not touched. The discrepancy includes the opening balances, so after a repair
	// Diagnose reports Drift with UnexplainedDrift equal to minus their sum (see RepairIncludesInitialBalances).
	Repair(ctx context.Context, userId int) (RepairResult, error)
}

type OracleImpl struct {
	wallets WalletSource
	budgets BudgetSource
	audit   AuditSource
	clock   utils.Clock
}

func NewOracle(wallets WalletSource, budgets BudgetSource, audit AuditSource, clock utils.Clock) *OracleImpl {
	return &OracleImpl{wallets: wallets, budgets: budgets, audit: audit, clock: clock}
}

func (o *OracleImpl) Diagnose(ctx context.Context, userId int) (Report, error) {
	ctx = user.WithId(ctx, userId)

	var wallets []wallet.Wallet
	var months []budget.Month
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wallets, err = o.wallets.ListWallets(gctx)
		if err != nil {
			return fmt.Errorf("failed to list wallets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		months, err = o.budgets.ListMonths(gctx)
		if err != nil {
			return fmt.Errorf("failed to list budget months: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("reconciliation of user %d failed: %v", userId, err)
		return Report{}, err
	}

	checks, err := o.checkWallets(ctx, wallets)
	if err != nil {
		log.Errorf("reconciliation of user %d failed: %v", userId, err)
		return Report{}, err
	}

	report := Report{
		UserId:             userId,
		GeneratedAt:        o.clock.Now(),
		TotalWalletBalance: decimal.Zero,
		NetFlow:            decimal.Zero,
		InitialBalances:    decimal.Zero,
		WalletCount:        len(wallets),
		Wallets:            checks,
	}
	for _, w := range wallets {
		report.TotalWalletBalance = report.TotalWalletBalance.Add(w.Balance)
		report.InitialBalances = report.InitialBalances.Add(w.InitialBalance)
	}
	for _, m := range months {
		report.TransactionCount += len(m.Transactions)
		report.NetFlow = report.NetFlow.Add(netFlow(m.Transactions))
	}
	report.Discrepancy = report.TotalWalletBalance.Sub(report.NetFlow)
	report.UnexplainedDrift = report.Discrepancy.Sub(report.InitialBalances)
	report.Drift = !report.UnexplainedDrift.IsZero()

	if report.Drift {
		log.Warnf("user %d: unexplained drift of %s", userId, report.UnexplainedDrift)
	}
	if n := report.IncompleteWallets(); n > 0 {
		log.Warnf("user %d: %d wallet(s) not covered by their audit trail", userId, n)
	}
	return report, nil
}

func (o *OracleImpl) checkWallets(ctx context.Context, wallets []wallet.Wallet) ([]WalletCheck, error) {
	checks := make([]WalletCheck, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditWorkers)
	for i, w := range wallets {
		g.Go(func() error {
			sum, err := o.audit.SumChanges(gctx, audit.EntityWallet, w.Id)
			if err != nil {
				return fmt.Errorf("failed to sum audit trail of wallet %d: %w", w.Id, err)
			}
			checks[i] = WalletCheck{
				WalletId:       w.Id,
				Name:           w.Name,
				Balance:        w.Balance,
				InitialBalance: w.InitialBalance,
				AuditedChanges: sum,
				Complete:       w.InitialBalance.Add(sum).Equal(w.Balance),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

// netFlow is income minus every expense kind amount. Transfers move money between wallets and
// do not count.
func netFlow(transactions []budget.Transaction) decimal.Decimal {
	flow := decimal.Zero
	for _, t := range transactions {
		switch t.Kind {
		case budget.KindIncome:
			flow = flow.Add(t.Actual)
		case budget.KindExpense:
			flow = flow.Sub(t.Actual)
		}
	}
	return flow
}

func (o *OracleImpl) Repair(ctx context.Context, userId int) (RepairResult, error) {
	report, err := o.Diagnose(ctx, userId)
	if err != nil {
		return RepairResult{}, err
	}
	if !report.Discrepancy.IsPositive() {
		return RepairResult{Before: report}, ErrNothingToRepair
	}

	transaction, err := o.budgets.AddTransaction(user.WithId(ctx, userId), budget.Transaction{
		Name:     repairName,
		Category: budget.CategoryBalanceAdjustment,
		Kind:     budget.KindIncome,
		Planned:  decimal.Zero,
		Actual:   report.Discrepancy,
		Date:     o.clock.Now(),
	})
	if err != nil {
		log.Errorf("failed to book balance adjustment for user %d: %v", userId, err)
		return RepairResult{Before: report}, err
	}
	log.Infof("user %d: booked balance adjustment of %s in %s", userId, report.Discrepancy, transaction.Period())
	return RepairResult{Before: report, Transaction: transaction}, nil
}
