package rollover

import (
	"errors"
	"net/http"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/budget"
	"github.com/fintrack/fintrack/pkg/user"
)

type ChainResultDTO struct {
	StartMonth    int    `json:"startMonth"`
	StartYear     int    `json:"startYear"`
	LastMonth     int    `json:"lastMonth"`
	LastYear      int    `json:"lastYear"`
	MonthsVisited int    `json:"monthsVisited"`
	MonthsUpdated int    `json:"monthsUpdated"`
	Terminated    string `json:"terminated"`
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// Recompute re-runs the chain from the given month on demand.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	period, err := budget.PeriodFromQuery(r)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid month or year", err.Error())
		return
	}
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		if errors.Is(err, user.ErrNoUser) {
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Failed to recompute rollover", err.Error())
		return
	}

	result, err := h.engine.RecomputeChain(r.Context(), userId, period, 0)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to recompute rollover", err.Error())
		return
	}
	rest.WriteJSON(w, http.StatusOK, ChainResultDTO{
		StartMonth:    result.Start.Month,
		StartYear:     result.Start.Year,
		LastMonth:     result.Last.Month,
		LastYear:      result.Last.Year,
		MonthsVisited: result.MonthsVisited,
		MonthsUpdated: result.MonthsUpdated,
		Terminated:    string(result.Terminated),
	})
}
