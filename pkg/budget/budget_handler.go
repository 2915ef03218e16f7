package budget

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type TransactionDTO struct {
	Id         int             `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Planned    decimal.Decimal `json:"planned"`
	Actual     decimal.Decimal `json:"actual"`
	Date       string          `json:"date"`
	Time       string          `json:"time,omitempty"`
	Kind       string          `json:"type"`
	WalletId   *int            `json:"walletId,omitempty"`
	ToWalletId *int            `json:"toWalletId,omitempty"`
	GoalId     *int            `json:"goalId,omitempty"`
}

type MonthDTO struct {
	Id              int              `json:"id"`
	Month           int              `json:"month"`
	Year            int              `json:"year"`
	RolloverPlanned decimal.Decimal  `json:"rolloverPlanned"`
	RolloverActual  decimal.Decimal  `json:"rolloverActual"`
	Income          decimal.Decimal  `json:"income"`
	Expenses        decimal.Decimal  `json:"expenses"`
	Savings         decimal.Decimal  `json:"savings"`
	Transactions    []TransactionDTO `json:"transactions"`
}

const dateLayout = "2006-01-02"

type BudgetHandler struct {
	service Service
}

func NewBudgetHandler(service Service) *BudgetHandler {
	return &BudgetHandler{service: service}
}

func (h *BudgetHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	period, err := PeriodFromQuery(r)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid month or year", err.Error())
		return
	}
	month, err := h.service.GetMonth(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, monthToDTO(month))
}

func (h *BudgetHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	log.Debug("Adding transaction")
	t, ok := decodeTransaction(w, r)
	if !ok {
		return
	}
	created, err := h.service.AddTransaction(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, TransactionToDTO(created))
}

func (h *BudgetHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid transaction id", err.Error())
		return
	}
	t, ok := decodeTransaction(w, r)
	if !ok {
		return
	}
	if t.Id != 0 && t.Id != id {
		rest.WriteError(w, http.StatusBadRequest, "Invalid transaction id in request body", "")
		return
	}
	t.Id = id
	updated, err := h.service.UpdateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TransactionToDTO(updated))
}

func (h *BudgetHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid transaction id", err.Error())
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PeriodFromQuery reads the month and year query parameters.
func PeriodFromQuery(r *http.Request) (Period, error) {
	query := r.URL.Query()
	month, err := strconv.Atoi(query.Get("month"))
	if err != nil {
		return Period{}, err
	}
	year, err := strconv.Atoi(query.Get("year"))
	if err != nil {
		return Period{}, err
	}
	p := Period{Month: month, Year: year}
	if !p.Valid() {
		return Period{}, ErrInvalidTransaction
	}
	return p, nil
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (Transaction, bool) {
	var dto TransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return Transaction{}, false
	}
	date, err := time.Parse(dateLayout, dto.Date)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD")
		return Transaction{}, false
	}
	kind, err := NormalizeKind(dto.Kind, dto.Category)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid transaction type", err.Error())
		return Transaction{}, false
	}
	return Transaction{
		Id:         dto.Id,
		Name:       dto.Name,
		Category:   dto.Category,
		Planned:    dto.Planned,
		Actual:     dto.Actual,
		Date:       date,
		Time:       dto.Time,
		Kind:       kind,
		WalletId:   dto.WalletId,
		ToWalletId: dto.ToWalletId,
		GoalId:     dto.GoalId,
	}, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, ErrBudgetNotFound):
		rest.WriteError(w, http.StatusNotFound, "Budget month not found", "")
	case errors.Is(err, ErrTransactionNotFound):
		rest.WriteError(w, http.StatusNotFound, "Transaction not found", "")
	case errors.Is(err, wallet.ErrWalletNotFound):
		rest.WriteError(w, http.StatusNotFound, "Wallet not found", "")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		rest.WriteError(w, http.StatusConflict, "Insufficient funds", err.Error())
	case errors.Is(err, ErrInvalidTransaction), errors.Is(err, wallet.ErrInvalidAmount):
		rest.WriteError(w, http.StatusBadRequest, "Invalid transaction", err.Error())
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Transaction operation failed", err.Error())
	}
}

func TransactionToDTO(t Transaction) TransactionDTO {
	return TransactionDTO{
		Id:         t.Id,
		Name:       t.Name,
		Category:   t.Category,
		Planned:    t.Planned,
		Actual:     t.Actual,
		Date:       t.Date.Format(dateLayout),
		Time:       t.Time,
		Kind:       string(t.Kind),
		WalletId:   t.WalletId,
		ToWalletId: t.ToWalletId,
		GoalId:     t.GoalId,
	}
}

func monthToDTO(m Month) MonthDTO {
	summary := Summarize(m.Transactions)
	transactions := make([]TransactionDTO, 0, len(m.Transactions))
	for _, t := range m.Transactions {
		transactions = append(transactions, TransactionToDTO(t))
	}
	return MonthDTO{
		Id:              m.Id,
		Month:           m.Period.Month,
		Year:            m.Period.Year,
		RolloverPlanned: m.RolloverPlanned,
		RolloverActual:  m.RolloverActual,
		Income:          summary.Income,
		Expenses:        summary.Expenses,
		Savings:         summary.Savings,
		Transactions:    transactions,
	}
}
