package reconciliation

import (
	"errors"
	"net/http"
	"time"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type WalletCheckDTO struct {
	WalletId       int             `json:"walletId"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	AuditedChanges decimal.Decimal `json:"auditedChanges"`
	Complete       bool            `json:"complete"`
}

type ReportDTO struct {
	GeneratedAt        time.Time        `json:"generatedAt"`
	TotalWalletBalance decimal.Decimal  `json:"totalWalletBalance"`
	NetFlow            decimal.Decimal  `json:"netFlow"`
	Discrepancy        decimal.Decimal  `json:"discrepancy"`
	InitialBalances    decimal.Decimal  `json:"initialBalances"`
	UnexplainedDrift   decimal.Decimal  `json:"unexplainedDrift"`
	WalletCount        int              `json:"walletCount"`
	TransactionCount   int              `json:"transactionCount"`
	Drift              bool             `json:"drift"`
	Wallets            []WalletCheckDTO `json:"wallets"`
}

type RepairDTO struct {
	Before      ReportDTO             `json:"before"`
	Transaction budget.TransactionDTO `json:"transaction"`
}

type Handler struct {
	oracle   Oracle
	renderer ReportRenderer
}

func NewHandler(oracle Oracle, renderer ReportRenderer) *Handler {
	return &Handler{oracle: oracle, renderer: renderer}
}

// Diagnose answers with JSON, or CSV when asked for with ?format=csv or Accept: text/csv.
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
		return
	}

	report, err := h.oracle.Diagnose(r.Context(), userId)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to reconcile", err.Error())
		return
	}

	if r.URL.Query().Get("format") == "csv" || r.Header.Get("Accept") == "text/csv" {
		csv, err := h.renderer.RenderReport(report)
		if err != nil {
			rest.WriteError(w, http.StatusInternalServerError, "Failed to render report", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csv)); err != nil {
			log.Errorf("failed to write csv report: %v", err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, reportToDTO(report))
}

func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
		return
	}

	result, err := h.oracle.Repair(r.Context(), userId)
	if err != nil {
		if errors.Is(err, ErrNothingToRepair) {
			rest.WriteError(w, http.StatusConflict, "Nothing to repair", "discrepancy is not positive")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Failed to repair", err.Error())
		return
	}
	rest.WriteJSON(w, http.StatusOK, RepairDTO{
		Before:      reportToDTO(result.Before),
		Transaction: budget.TransactionToDTO(result.Transaction),
	})
}

func reportToDTO(report Report) ReportDTO {
	wallets := make([]WalletCheckDTO, 0, len(report.Wallets))
	for _, c := range report.Wallets {
		wallets = append(wallets, WalletCheckDTO{
			WalletId:       c.WalletId,
			Name:           c.Name,
			Balance:        c.Balance,
			InitialBalance: c.InitialBalance,
			AuditedChanges: c.AuditedChanges,
			Complete:       c.Complete,
		})
	}
	return ReportDTO{
		GeneratedAt:        report.GeneratedAt,
		TotalWalletBalance: report.TotalWalletBalance,
		NetFlow:            report.NetFlow,
		Discrepancy:        report.Discrepancy,
		InitialBalances:    report.InitialBalances,
		UnexplainedDrift:   report.UnexplainedDrift,
		WalletCount:        report.WalletCount,
		TransactionCount:   report.TransactionCount,
		Drift:              report.Drift,
		Wallets:            wallets,
	}
}
