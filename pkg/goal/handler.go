package goal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/user"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type GoalDTO struct {
	Id            int             `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Status        string          `json:"status"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.service.ListGoals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		dtos = append(dtos, toDTO(g))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto GoalDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	created, err := h.service.CreateGoal(r.Context(), Goal{Name: dto.Name, TargetAmount: dto.TargetAmount, CurrentAmount: dto.CurrentAmount})
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid goal id", err.Error())
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	status, err := ParseStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.service.SetStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(updated))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, ErrGoalNotFound):
		rest.WriteError(w, http.StatusNotFound, "Goal not found", "")
	case errors.Is(err, ErrGoalNotReached):
		rest.WriteError(w, http.StatusConflict, "Goal target not reached", err.Error())
	case errors.Is(err, ErrInvalidGoal):
		rest.WriteError(w, http.StatusBadRequest, "Invalid goal", err.Error())
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Goal operation failed", err.Error())
	}
}

func toDTO(g Goal) GoalDTO {
	return GoalDTO{
		Id:            g.Id,
		Name:          g.Name,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Status:        string(g.Status),
	}
}
