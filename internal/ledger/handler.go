package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/httpx"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// ProductLookup resolves the current sell price of a product's open price
// row, for the route-level credit check.
type ProductLookup interface {
	OpenSellPrice(ctx context.Context, barcode string) (int64, error)
}

// BalanceLookup resolves a user's current balance.
type BalanceLookup interface {
	Balance(ctx context.Context, userID int64) (int64, error)
}

// PriceUpdater applies buy/sell price edits bundled into an admin buy-in
// request. Runs after the buy-in as a separate operation.
type PriceUpdater interface {
	UpdatePrices(ctx context.Context, barcode string, buyPrice, sellPrice *int64, actorID int64) error
}

// IdempotencyGuard records and releases Idempotency-Key headers on the
// deposit endpoint. Satisfied by shared.IdempotencyStore.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler wires HTTP endpoints for the ledger operations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	products ProductLookup
	balances BalanceLookup
	updater  PriceUpdater
	idem     IdempotencyGuard
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, products ProductLookup, balances BalanceLookup, updater PriceUpdater) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		products: products,
		balances: balances,
		updater:  updater,
		validate: validator.New(),
	}
}

// WithIdempotency enables Idempotency-Key handling on the deposit endpoint.
func (h *Handler) WithIdempotency(guard IdempotencyGuard) *Handler {
	h.idem = guard
	return h
}

// MountPurchaseRoutes registers purchase and return endpoints on the
// user-facing products subrouter.
func (h *Handler) MountPurchaseRoutes(r chi.Router) {
	r.Post("/{barcode}/purchase", h.handlePurchase)
	r.Post("/{barcode}/return", h.handleReturn)
}

// MountDepositRoutes registers the deposit endpoint on the user subrouter.
func (h *Handler) MountDepositRoutes(r chi.Router) {
	r.Post("/deposit", h.handleDeposit)
}

// MountAdminProductRoutes registers product buy-in on the admin subrouter.
func (h *Handler) MountAdminProductRoutes(r chi.Router) {
	r.Post("/{barcode}/buyIn", h.handleBuyIn)
}

// MountAdminBoxRoutes registers box buy-in on the admin subrouter.
func (h *Handler) MountAdminBoxRoutes(r chi.Router) {
	r.Post("/{barcode}/buyIn", h.handleBoxBuyIn)
}

type purchaseRequest struct {
	Count int64 `json:"count" validate:"required,min=1"`
}

type purchaseResponse struct {
	AccountBalance int64             `json:"accountBalance"`
	ProductStock   int64             `json:"productStock"`
	Purchases      []PurchaseReceipt `json:"purchases"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	barcode := chi.URLParam(r, "barcode")

	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "count must be a positive integer")
		return
	}

	sellPrice, err := h.products.OpenSellPrice(r.Context(), barcode)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product does not exist")
			return
		}
		h.logger.Error("resolve product for purchase", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	balance, err := h.balances.Balance(r.Context(), sess.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, "resolve balance for purchase", err)
		return
	}

	// A user may always empty the account but only one unit may go on
	// credit, checked against the pre-purchase balance and the full count.
	if sellPrice > 0 && balance <= sellPrice*(req.Count-1) {
		h.logger.Warn("purchase rejected for insufficient funds",
			slog.Int64("user_id", sess.UserID), slog.String("barcode", barcode), slog.Int64("count", req.Count))
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient funds")
		return
	}

	receipts, err := h.service.Purchase(r.Context(), barcode, sess.UserID, req.Count)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product does not exist")
			return
		}
		h.logger.Error("record purchase", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	last := receipts[len(receipts)-1]
	h.logger.Info("purchase recorded",
		slog.Int64("user_id", sess.UserID), slog.String("barcode", barcode), slog.Int64("count", req.Count))
	httpx.JSON(w, http.StatusOK, purchaseResponse{
		AccountBalance: last.BalanceAfter,
		ProductStock:   last.StockAfter,
		Purchases:      receipts,
	})
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	barcode := chi.URLParam(r, "barcode")

	ok, err := h.service.ReturnPurchase(r.Context(), barcode, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "purchase was already returned")
			return
		}
		h.logger.Error("return purchase", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no recent unreturned purchase of this product")
		return
	}

	h.logger.Info("purchase returned", slog.Int64("user_id", sess.UserID), slog.String("barcode", barcode))
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type depositRequest struct {
	Amount int64  `json:"amount" validate:"required,min=1"`
	Type   string `json:"type" validate:"required,oneof=cash banktransfer"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())

	var req depositRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be positive and type cash or banktransfer")
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if h.idem != nil && idemKey != "" {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, shared.IdempotencyModuleDeposit); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "deposit already processed")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	receipt, err := h.service.Deposit(r.Context(), sess.UserID, req.Amount, DepositKind(req.Type))
	if err != nil {
		if h.idem != nil && idemKey != "" {
			if delErr := h.idem.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.logger.Error("record deposit", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("deposit recorded",
		slog.Int64("user_id", sess.UserID), slog.Int64("amount", req.Amount),
		slog.String("balance_after", shared.FormatCents(receipt.BalanceAfter)))
	httpx.JSON(w, http.StatusOK, map[string]any{"deposit": receipt})
}

type buyInRequest struct {
	Count     int64  `json:"count" validate:"required,min=1"`
	BuyPrice  *int64 `json:"buyPrice,omitempty"`
	SellPrice *int64 `json:"sellPrice,omitempty"`
}

func (h *Handler) handleBuyIn(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	barcode := chi.URLParam(r, "barcode")

	var req buyInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "count must be a positive integer")
		return
	}

	stock, err := h.service.BuyIn(r.Context(), barcode, req.Count, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product does not exist")
			return
		}
		h.logger.Error("record buy-in", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	// Bundled price edits apply after the restock as a separate catalog
	// operation; the stock increment stands even if this part fails.
	if (req.BuyPrice != nil || req.SellPrice != nil) && h.updater != nil {
		if err := h.updater.UpdatePrices(r.Context(), barcode, req.BuyPrice, req.SellPrice, sess.UserID); err != nil {
			httpx.RespondError(w, h.logger, "apply buy-in price update", err)
			return
		}
	}

	h.logger.Info("buy-in recorded",
		slog.Int64("user_id", sess.UserID), slog.String("barcode", barcode), slog.Int64("count", req.Count))
	httpx.JSON(w, http.StatusOK, map[string]int64{"stock": stock})
}

type boxBuyInRequest struct {
	BoxCount int64 `json:"boxCount" validate:"required,min=1"`
}

func (h *Handler) handleBoxBuyIn(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	boxBarcode := chi.URLParam(r, "barcode")

	var req boxBuyInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "boxCount must be a positive integer")
		return
	}

	stock, err := h.service.BuyInBox(r.Context(), boxBarcode, req.BoxCount, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "box does not exist")
			return
		}
		h.logger.Error("record box buy-in", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("box buy-in recorded",
		slog.Int64("user_id", sess.UserID), slog.String("box_barcode", boxBarcode), slog.Int64("boxes", req.BoxCount))
	httpx.JSON(w, http.StatusOK, map[string]int64{"stock": stock})
}
