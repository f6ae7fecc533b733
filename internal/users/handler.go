package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/httpx"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountUserRoutes registers the self-service account endpoints on the user
// subrouter.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.handleGetAccount)
	r.Patch("/", h.handleUpdateAccount)
}

// MountAdminRoutes registers the account management endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.handleListUsers)
	r.Get("/{userId}", h.handleGetUser)
	r.Patch("/{userId}", h.handleAdminUpdateUser)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	user, err := h.service.Get(r.Context(), sess.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, "load account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateAccountRequest struct {
	FullName     *string `json:"fullName,omitempty" validate:"omitempty,min=1"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Password     *string `json:"password,omitempty" validate:"omitempty,min=8"`
	RFID         *string `json:"rfid,omitempty" validate:"omitempty,min=1"`
	PrivacyLevel *int    `json:"privacyLevel,omitempty" validate:"omitempty,min=0,max=2"`
}

func (h *Handler) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())

	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account fields")
		return
	}

	user, err := h.service.UpdateOwn(r.Context(), sess.UserID, AccountEdit{
		FullName:     req.FullName,
		Email:        req.Email,
		Password:     req.Password,
		RFID:         req.RFID,
		PrivacyLevel: req.PrivacyLevel,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "email already in use")
			return
		}
		h.logger.Error("update account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("account updated", slog.Int64("user_id", sess.UserID))
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId must be an integer")
		return
	}
	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, h.logger, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

type adminUpdateUserRequest struct {
	Username     *string `json:"username,omitempty" validate:"omitempty,min=1,max=32"`
	FullName     *string `json:"fullName,omitempty" validate:"omitempty,min=1"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Role         *string `json:"role,omitempty" validate:"omitempty,oneof=USER1 ADMIN INACTIVE"`
	PrivacyLevel *int    `json:"privacyLevel,omitempty" validate:"omitempty,min=0,max=2"`
	Password     *string `json:"password,omitempty" validate:"omitempty,min=8"`
	RFID         *string `json:"rfid,omitempty" validate:"omitempty,min=1"`
	MoneyBalance *int64  `json:"moneyBalance,omitempty"`
}

func (h *Handler) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId must be an integer")
		return
	}

	var req adminUpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account fields")
		return
	}

	user, err := h.service.AdminUpdate(r.Context(), userID, AdminEdit{
		Username:     req.Username,
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         req.Role,
		PrivacyLevel: req.PrivacyLevel,
		Password:     req.Password,
		RFID:         req.RFID,
		Balance:      req.MoneyBalance,
	}, sess.UserID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user does not exist")
		case errors.Is(err, shared.ErrDuplicate):
			httpx.Problem(w, http.StatusConflict, "Conflict", "username or email already in use")
		default:
			h.logger.Error("admin update user", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	h.logger.Info("user updated by admin",
		slog.Int64("user_id", userID), slog.Int64("actor_id", sess.UserID))
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}
