package app

import (
	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/database"
	"github.com/fintrack/fintrack/internal/event_bus"
	"github.com/fintrack/fintrack/internal/events/kafka"
	"github.com/fintrack/fintrack/internal/utils"
	"github.com/fintrack/fintrack/pkg/audit"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/fintrack/fintrack/pkg/goal"
	"github.com/fintrack/fintrack/pkg/loan"
	"github.com/fintrack/fintrack/pkg/reconciliation"
	"github.com/fintrack/fintrack/pkg/rollover"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock      utils.Clock
	EventBus   *event_bus.EventBus
	Transactor database.Transactor

	UserService user.Service
	UserHandler *user.Handler

	AuditRepo    *audit.RepositoryImpl
	AuditService *audit.ServiceImpl
	AuditHandler *audit.Handler

	WalletRepo    *wallet.RepositoryImpl
	WalletLedger  *wallet.LedgerImpl
	WalletHandler *wallet.Handler

	GoalService *goal.ServiceImpl
	GoalHandler *goal.Handler

	BudgetRepo    *budget.RepositoryImpl
	BudgetService *budget.ServiceImpl
	BudgetHandler *budget.BudgetHandler

	RolloverEngine  *rollover.EngineImpl
	RolloverHandler *rollover.Handler

	LoanService *loan.ServiceImpl
	LoanHandler *loan.Handler

	Oracle                *reconciliation.OracleImpl
	CsvReportRenderer     *reconciliation.CsvReportRendererImpl
	ReconciliationHandler *reconciliation.Handler

	// AuditStream is nil when no Kafka brokers are configured.
	AuditStream *kafka.Publisher
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	deps.Transactor = database.NewPgTransactor(db)

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.AuditRepo = audit.NewRepository(db)
	deps.AuditService = audit.NewService(deps.AuditRepo, deps.EventBus, deps.Clock)
	deps.AuditHandler = audit.NewHandler(deps.AuditService)

	deps.WalletRepo = wallet.NewRepository(db, deps.Transactor, deps.AuditRepo)
	deps.WalletLedger = wallet.NewLedger(deps.WalletRepo, deps.AuditService, deps.Clock)
	deps.WalletHandler = wallet.NewHandler(deps.WalletLedger)

	deps.GoalService = goal.NewService(goal.NewRepository(db))
	deps.GoalHandler = goal.NewHandler(deps.GoalService)

	deps.BudgetRepo = budget.NewRepository(db)
	deps.BudgetService = budget.NewService(deps.BudgetRepo, deps.Transactor, deps.WalletLedger, deps.GoalService,
		deps.AuditService, deps.EventBus)
	deps.BudgetHandler = budget.NewBudgetHandler(deps.BudgetService)

	deps.RolloverEngine = rollover.NewEngine(deps.BudgetRepo, deps.Transactor, cfg.Rollover.Horizon)
	deps.RolloverEngine.Subscribe(deps.EventBus)
	deps.RolloverHandler = rollover.NewHandler(deps.RolloverEngine)

	deps.LoanService = loan.NewService(loan.NewRepository(db), deps.Transactor, deps.WalletLedger, deps.AuditService,
		deps.EventBus, deps.Clock)
	deps.LoanHandler = loan.NewHandler(deps.LoanService)

	deps.Oracle = reconciliation.NewOracle(deps.WalletLedger, deps.BudgetService, deps.AuditService, deps.Clock)
	deps.CsvReportRenderer = reconciliation.NewCsvReportRenderer()
	deps.ReconciliationHandler = reconciliation.NewHandler(deps.Oracle, deps.CsvReportRenderer)

	if len(cfg.Kafka.Brokers) > 0 {
		deps.AuditStream = kafka.NewPublisher(cfg.Kafka)
		deps.AuditStream.Subscribe(deps.EventBus)
		log.Infof("Streaming audit entries to topic %s", cfg.Kafka.Topic)
	}

	return deps
}
