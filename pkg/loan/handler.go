package loan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/fintrack/fintrack/pkg/wallet"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type EntryDTO struct {
	Id     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Note   string          `json:"note,omitempty"`
}

type LoanDTO struct {
	Id              int             `json:"id"`
	PersonName      string          `json:"personName"`
	Direction       string          `json:"type"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Status          string          `json:"status"`
	WalletId        *int            `json:"walletId,omitempty"`
	Payments        []EntryDTO      `json:"payments"`
	TopUps          []EntryDTO      `json:"topUps"`
}

type NewLoanDTO struct {
	PersonName string          `json:"personName"`
	Direction  string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	WalletId   *int            `json:"walletId,omitempty"`
	Note       string          `json:"note,omitempty"`
}

type AmountDTO struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]LoanDTO, 0, len(loans))
	for _, l := range loans {
		dtos = append(dtos, toDTO(l))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating loan")
	var dto NewLoanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	l, err := h.service.CreateLoan(r.Context(), NewLoan{
		PersonName: dto.PersonName,
		Direction:  Direction(dto.Direction),
		Amount:     dto.Amount,
		WalletId:   dto.WalletId,
		Note:       dto.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(l))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := loanId(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteLoan(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := loanId(w, r)
	if !ok {
		return
	}
	var dto AmountDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	l, err := h.service.AddPayment(r.Context(), id, dto.Amount, dto.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(l))
}

func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := loanId(w, r)
	if !ok {
		return
	}
	paymentId, err := uuid.Parse(mux.Vars(r)["paymentId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid payment id", err.Error())
		return
	}
	l, err := h.service.RemovePayment(r.Context(), id, paymentId)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(l))
}

func (h *Handler) AddTopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := loanId(w, r)
	if !ok {
		return
	}
	var dto AmountDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	l, err := h.service.AddTopUp(r.Context(), id, dto.Amount, dto.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(l))
}

func loanId(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid loan id", err.Error())
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, ErrLoanNotFound):
		rest.WriteError(w, http.StatusNotFound, "Loan not found", "")
	case errors.Is(err, ErrPaymentNotFound):
		rest.WriteError(w, http.StatusNotFound, "Payment not found", "")
	case errors.Is(err, wallet.ErrWalletNotFound):
		rest.WriteError(w, http.StatusNotFound, "Wallet not found", "")
	case errors.Is(err, ErrLoanSettled):
		rest.WriteError(w, http.StatusConflict, "Loan is already settled", "")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		rest.WriteError(w, http.StatusConflict, "Insufficient funds", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidLoan):
		rest.WriteError(w, http.StatusBadRequest, "Invalid loan data", err.Error())
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Loan operation failed", err.Error())
	}
}

func toDTO(l Loan) LoanDTO {
	return LoanDTO{
		Id:              l.Id,
		PersonName:      l.PersonName,
		Direction:       string(l.Direction),
		TotalAmount:     l.TotalAmount,
		RemainingAmount: l.RemainingAmount,
		Status:          string(l.Status),
		WalletId:        l.WalletId,
		Payments:        entriesToDTO(l.Payments),
		TopUps:          entriesToDTO(l.TopUps),
	}
}

func entriesToDTO(entries []Entry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{Id: e.Id.String(), Amount: e.Amount, Date: e.Date, Note: e.Note})
	}
	return dtos
}
