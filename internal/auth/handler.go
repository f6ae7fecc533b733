package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/httpx"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/authenticate", h.handleAuthenticate)
	r.Post("/authenticate/rfid", h.handleAuthenticateRFID)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type authenticateRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=1"`
}

type sessionResponse struct {
	AccessToken string     `json:"accessToken"`
	User        users.User `json:"user"`
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "username and password are required")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Warn("login failed", slog.String("username", req.Username))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.issueSession(w, r, user)
}

type rfidRequest struct {
	RFID string `json:"rfid" validate:"required,min=1"`
}

func (h *Handler) handleAuthenticateRFID(w http.ResponseWriter, r *http.Request) {
	var req rfidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rfid is required")
		return
	}

	user, err := h.service.AuthenticateRFID(r.Context(), req.RFID)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Warn("rfid login failed")
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid rfid")
			return
		}
		h.logger.Error("authenticate rfid", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.issueSession(w, r, user)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=1,max=32"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required,min=1"`
	Email    string `json:"email" validate:"required,email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "username, password, fullName and email are required")
		return
	}

	user, err := h.service.Register(r.Context(), users.Registration{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "username or email already in use")
			return
		}
		h.logger.Error("register", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("account registered via api", slog.Int64("user_id", user.UserID))
	h.issueSession(w, r, user)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r.Context(), r)
	if err != nil {
		// Already logged out or never logged in; nothing to do.
		httpx.NoContent(w)
		return
	}
	if err := h.sessions.Destroy(r.Context(), sess.Token); err != nil {
		h.logger.Error("destroy session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.logger.Info("logged out", slog.Int64("user_id", sess.UserID))
	httpx.NoContent(w)
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, user users.User) {
	sess, err := h.sessions.Create(r.Context(), user.UserID, user.Role)
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.logger.Info("logged in", slog.Int64("user_id", user.UserID), slog.String("role", user.Role))
	httpx.JSON(w, http.StatusOK, sessionResponse{AccessToken: sess.Token, User: user})
}
