package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/fintrack/fintrack/pkg/user"
	log "github.com/sirupsen/logrus"
)

type EntryDTO struct {
	Id              string    `json:"id"`
	EntityType      string    `json:"entityType"`
	EntityId        int       `json:"entityId"`
	EntityName      string    `json:"entityName"`
	ChangeType      string    `json:"changeType"`
	PreviousBalance string    `json:"previousBalance"`
	NewBalance      string    `json:"newBalance"`
	ChangeAmount    string    `json:"changeAmount"`
	Reason          string    `json:"reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// List returns the audit trail, optionally narrowed to one entity.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing audit entries")
	query := r.URL.Query()
	filter := Filter{EntityType: EntityType(query.Get("entityType"))}
	if raw := query.Get("entityId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid entityId", err.Error())
			return
		}
		filter.EntityId = id
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			rest.WriteError(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, user.ErrNoUser) {
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Failed to list audit entries", err.Error())
		return
	}

	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{
			Id:              e.Id.String(),
			EntityType:      string(e.EntityType),
			EntityId:        e.EntityId,
			EntityName:      e.EntityName,
			ChangeType:      string(e.ChangeType),
			PreviousBalance: e.PreviousBalance.StringFixed(2),
			NewBalance:      e.NewBalance.StringFixed(2),
			ChangeAmount:    e.ChangeAmount.StringFixed(2),
			Reason:          e.Reason,
			Timestamp:       e.Timestamp,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}
