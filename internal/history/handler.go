package history

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/httpx"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Handler wires HTTP endpoints for the history read side.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountUserRoutes registers the account-scoped history endpoints on the
// user subrouter.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/purchaseHistory", h.handleUserPurchases)
	r.Get("/purchaseHistory/{purchaseId}", h.handleUserPurchase)
	r.Get("/depositHistory", h.handleUserDeposits)
	r.Get("/depositHistory/{depositId}", h.handleUserDeposit)
}

// MountAdminRoutes registers the unscoped history endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/purchases", h.handleAdminPurchases)
	r.Get("/purchases/{purchaseId}", h.handleAdminPurchase)
	r.Get("/deposits", h.handleAdminDeposits)
	r.Get("/deposits/{depositId}", h.handleAdminDeposit)
}

func (h *Handler) handleUserPurchases(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	events, err := h.service.Purchases(r.Context(), Filter{UserID: sess.UserID}, shared.KeysetFromRequest(r))
	if err != nil {
		httpx.RespondError(w, h.logger, "list user purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": events})
}

func (h *Handler) handleUserPurchase(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "purchaseId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "purchaseId must be an integer")
		return
	}
	h.respondPurchase(w, r, purchaseID, sess.UserID)
}

func (h *Handler) handleUserDeposits(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	events, err := h.service.Deposits(r.Context(), Filter{UserID: sess.UserID}, shared.KeysetFromRequest(r))
	if err != nil {
		httpx.RespondError(w, h.logger, "list user deposits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deposits": events})
}

func (h *Handler) handleUserDeposit(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	depositID, err := strconv.ParseInt(chi.URLParam(r, "depositId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "depositId must be an integer")
		return
	}
	h.respondDeposit(w, r, depositID, sess.UserID)
}

// adminFilter reads optional ?userId= and ?barcode= restrictions.
func adminFilter(r *http.Request) Filter {
	var f Filter
	if raw := r.URL.Query().Get("userId"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.UserID = v
		}
	}
	f.Barcode = r.URL.Query().Get("barcode")
	return f
}

func (h *Handler) handleAdminPurchases(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Purchases(r.Context(), adminFilter(r), shared.KeysetFromRequest(r))
	if err != nil {
		httpx.RespondError(w, h.logger, "list purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": events})
}

func (h *Handler) handleAdminPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "purchaseId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "purchaseId must be an integer")
		return
	}
	h.respondPurchase(w, r, purchaseID, 0)
}

func (h *Handler) handleAdminDeposits(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Deposits(r.Context(), adminFilter(r), shared.KeysetFromRequest(r))
	if err != nil {
		httpx.RespondError(w, h.logger, "list deposits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deposits": events})
}

func (h *Handler) handleAdminDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, err := strconv.ParseInt(chi.URLParam(r, "depositId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "depositId must be an integer")
		return
	}
	h.respondDeposit(w, r, depositID, 0)
}

func (h *Handler) respondPurchase(w http.ResponseWriter, r *http.Request, purchaseID, userID int64) {
	event, err := h.service.Purchase(r.Context(), purchaseID, userID)
	if err != nil {
		httpx.RespondError(w, h.logger, "find purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase": event})
}

func (h *Handler) respondDeposit(w http.ResponseWriter, r *http.Request, depositID, userID int64) {
	event, err := h.service.Deposit(r.Context(), depositID, userID)
	if err != nil {
		httpx.RespondError(w, h.logger, "find deposit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deposit": event})
}
