package app

import (
	"github.com/fintrack/fintrack/internal/config"
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Wallets
	r.HandleFunc("/api/wallet", deps.WalletHandler.List).Methods("GET")
	r.HandleFunc("/api/wallet", deps.WalletHandler.Create).Methods("POST")
	r.HandleFunc("/api/wallet/{id}", deps.WalletHandler.Get).Methods("GET")
	r.HandleFunc("/api/wallet/{id}", deps.WalletHandler.Update).Methods("PUT")
	r.HandleFunc("/api/wallet/{id}", deps.WalletHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/wallet/{id}/adjust", deps.WalletHandler.Adjust).Methods("POST")
	r.HandleFunc("/api/wallet/{id}/balance", deps.WalletHandler.SetBalance).Methods("PUT")

	// Budget months and transactions
	r.HandleFunc("/api/budget", deps.BudgetHandler.GetMonth).Methods("GET")
	r.HandleFunc("/api/budget/transaction", deps.BudgetHandler.AddTransaction).Methods("POST")
	r.HandleFunc("/api/budget/transaction/{id}", deps.BudgetHandler.UpdateTransaction).Methods("PUT")
	r.HandleFunc("/api/budget/transaction/{id}", deps.BudgetHandler.DeleteTransaction).Methods("DELETE")
	r.HandleFunc("/api/budget/rollover/recompute", deps.RolloverHandler.Recompute).Methods("POST")

	// Loans
	r.HandleFunc("/api/loan", deps.LoanHandler.List).Methods("GET")
	r.HandleFunc("/api/loan", deps.LoanHandler.Create).Methods("POST")
	r.HandleFunc("/api/loan/{id}", deps.LoanHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/loan/{id}/payment", deps.LoanHandler.AddPayment).Methods("POST")
	r.HandleFunc("/api/loan/{id}/payment/{paymentId}", deps.LoanHandler.RemovePayment).Methods("DELETE")
	r.HandleFunc("/api/loan/{id}/topup", deps.LoanHandler.AddTopUp).Methods("POST")

	// Goals
	r.HandleFunc("/api/goal", deps.GoalHandler.List).Methods("GET")
	r.HandleFunc("/api/goal", deps.GoalHandler.Create).Methods("POST")
	r.HandleFunc("/api/goal/{id}/status", deps.GoalHandler.SetStatus).Methods("PUT")

	// Audit trail
	r.HandleFunc("/api/audit", deps.AuditHandler.List).Methods("GET")

	// Reconciliation
	r.HandleFunc("/api/reconciliation", deps.ReconciliationHandler.Diagnose).Methods("GET")
	r.HandleFunc("/api/reconciliation/repair", deps.ReconciliationHandler.Repair).Methods("POST")

	// User management
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user", deps.UserHandler.GetAvailableUsers).Methods("GET")
}
