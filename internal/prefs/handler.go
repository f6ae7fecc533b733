package prefs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/httpx"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Handler wires HTTP endpoints for preference management.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountAdminRoutes registers the preference endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{preferenceKey}", h.handleGet)
	r.Patch("/{preferenceKey}", h.handleSet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	preferences, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, "list preferences", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"preferences": preferences})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	pref, err := h.service.Get(r.Context(), chi.URLParam(r, "preferenceKey"))
	if err != nil {
		httpx.RespondError(w, h.logger, "get preference", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"preference": pref})
}

type setPreferenceRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setPreferenceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}

	pref, _, err := h.service.Set(r.Context(), chi.URLParam(r, "preferenceKey"), req.Value)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "preference does not exist")
		case errors.Is(err, ErrInvalidValue):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid preference value")
		default:
			h.logger.Error("set preference", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"preference": pref})
}
