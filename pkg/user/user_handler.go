package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fintrack/fintrack/internal/rest"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid         string `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Currency    string `json:"currency"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

// CreateUser registers a user. The uid is generated when the client does not send one.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating user")

	var dto UserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	dto.Username = strings.TrimSpace(dto.Username)
	if dto.Username == "" {
		rest.WriteError(w, http.StatusBadRequest, "Username is required", "")
		return
	}
	if dto.DisplayName == "" {
		dto.DisplayName = dto.Username
	}
	if dto.Uid == "" {
		dto.Uid = uuid.NewString()
	}

	created, err := h.userService.CreateUser(r.Context(), dtoToUser(dto))
	if errors.Is(err, ErrUserDataInvalid) {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to create user", err.Error())
		return
	}
	log.Tracef("Created user: %+v", created)
	rest.WriteJSON(w, http.StatusCreated, userToDTO(created))
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	log.Trace("Getting current user")

	current, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrNoUser):
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
		case errors.Is(err, ErrUserNotFound):
			rest.WriteError(w, http.StatusNotFound, "User not found", "")
		default:
			rest.WriteError(w, http.StatusInternalServerError, "Failed to get user", err.Error())
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, userToDTO(current))
}

func (h *Handler) GetAvailableUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.GetAllUsers(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to list users", err.Error())
		return
	}
	result := make([]UserDTO, 0, len(users))
	for _, u := range users {
		result = append(result, userToDTO(u))
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

func dtoToUser(dto UserDTO) User {
	return User{
		Uid:         dto.Uid,
		Username:    dto.Username,
		DisplayName: dto.DisplayName,
		Currency:    strings.ToUpper(dto.Currency),
	}
}

func userToDTO(u User) UserDTO {
	return UserDTO{
		Uid:         u.Uid,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Currency:    u.Currency,
	}
}
