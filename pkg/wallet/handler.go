package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type WalletDTO struct {
	Id              int             `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Balance         decimal.Decimal `json:"balance"`
	InitialBalance  decimal.Decimal `json:"initialBalance"`
	IsSavingsWallet bool            `json:"isSavingsWallet"`
	Position        int             `json:"position"`
}

type AdjustDTO struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

type BalanceDTO struct {
	Balance decimal.Decimal `json:"balance"`
	Reason  string          `json:"reason"`
}

type AdjustResultDTO struct {
	Wallet          WalletDTO       `json:"wallet"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
}

type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.ledger.ListWallets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]WalletDTO, 0, len(wallets))
	for _, wallet := range wallets {
		dtos = append(dtos, toDTO(wallet))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := walletId(w, r)
	if !ok {
		return
	}
	wallet, err := h.ledger.GetWallet(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(wallet))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating wallet")
	var dto WalletDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	created, err := h.ledger.CreateWallet(r.Context(), fromDTO(dto))
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := walletId(w, r)
	if !ok {
		return
	}
	var dto WalletDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if dto.Id != 0 && dto.Id != id {
		rest.WriteError(w, http.StatusBadRequest, "Invalid wallet id in request body", "")
		return
	}
	wallet := fromDTO(dto)
	wallet.Id = id
	updated, err := h.ledger.UpdateWallet(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(updated))
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := walletId(w, r)
	if !ok {
		return
	}
	var dto AdjustDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	result, err := h.ledger.Adjust(r.Context(), id, dto.Delta, dto.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toResultDTO(result))
}

func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := walletId(w, r)
	if !ok {
		return
	}
	var dto BalanceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	result, err := h.ledger.SetBalance(r.Context(), id, dto.Balance, dto.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toResultDTO(result))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := walletId(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteWallet(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func walletId(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid wallet id", err.Error())
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, ErrWalletNotFound):
		rest.WriteError(w, http.StatusNotFound, "Wallet not found", "")
	case errors.Is(err, ErrInsufficientFunds):
		rest.WriteError(w, http.StatusConflict, "Insufficient funds", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidWallet):
		rest.WriteError(w, http.StatusBadRequest, "Invalid wallet data", err.Error())
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Wallet operation failed", err.Error())
	}
}

func toDTO(w Wallet) WalletDTO {
	return WalletDTO{
		Id:              w.Id,
		Name:            w.Name,
		Type:            string(w.Type),
		Balance:         w.Balance,
		InitialBalance:  w.InitialBalance,
		IsSavingsWallet: w.IsSavingsWallet,
		Position:        w.Position,
	}
}

func fromDTO(dto WalletDTO) Wallet {
	return Wallet{
		Id:              dto.Id,
		Name:            dto.Name,
		Type:            Type(dto.Type),
		InitialBalance:  dto.InitialBalance,
		IsSavingsWallet: dto.IsSavingsWallet,
		Position:        dto.Position,
	}
}

func toResultDTO(result AdjustResult) AdjustResultDTO {
	return AdjustResultDTO{
		Wallet:          toDTO(result.Wallet),
		PreviousBalance: result.PreviousBalance,
		NewBalance:      result.NewBalance,
	}
}
