package catalog

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

// Handler wires HTTP endpoints for products, categories and boxes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountUserRoutes registers the read-only product endpoints.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.handleListProducts)
	r.Post("/search", h.handleSearchProducts)
	r.Get("/{barcode}", h.handleGetProduct)
}

// MountUserCategoryRoutes registers the read-only category endpoints.
func (h *Handler) MountUserCategoryRoutes(r chi.Router) {
	r.Get("/", h.handleListCategories)
	r.Get("/{categoryId}", h.handleGetCategory)
}

// MountAdminProductRoutes registers the product management endpoints.
func (h *Handler) MountAdminProductRoutes(r chi.Router) {
	r.Get("/", h.handleListProducts)
	r.Post("/", h.handleCreateProduct)
	r.Post("/search", h.handleSearchProducts)
	r.Get("/{barcode}", h.handleGetProduct)
	r.Patch("/{barcode}", h.handleUpdateProduct)
	r.Delete("/{barcode}", h.handleDeleteProduct)
}

// MountAdminCategoryRoutes registers the category management endpoints.
func (h *Handler) MountAdminCategoryRoutes(r chi.Router) {
	r.Get("/", h.handleListCategories)
	r.Post("/", h.handleCreateCategory)
	r.Get("/{categoryId}", h.handleGetCategory)
	r.Patch("/{categoryId}", h.handleUpdateCategory)
	r.Delete("/{categoryId}", h.handleDeleteCategory)
}

// MountAdminBoxRoutes registers the box management endpoints.
func (h *Handler) MountAdminBoxRoutes(r chi.Router) {
	r.Get("/", h.handleListBoxes)
	r.Post("/", h.handleCreateBox)
	r.Get("/{barcode}", h.handleGetBox)
	r.Patch("/{barcode}", h.handleUpdateBox)
	r.Delete("/{barcode}", h.handleDeleteBox)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

type searchRequest struct {
	Query string `json:"query" validate:"required,min=1"`
}

func (h *Handler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "query must not be empty")
		return
	}

	products, err := h.service.SearchProducts(r.Context(), req.Query)
	if err != nil {
		httpx.RespondError(w, h.logger, "search products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.FindByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product does not exist")
			return
		}
		h.logger.Error("get product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product": product})
}

type createProductRequest struct {
	Barcode    string `json:"barcode" validate:"required,min=1,max=14"`
	Name       string `json:"name" validate:"required,min=1"`
	CategoryID int64  `json:"categoryId" validate:"required"`
	BuyPrice   int64  `json:"buyPrice" validate:"min=0"`
	SellPrice  int64  `json:"sellPrice" validate:"min=0"`
	Stock      int64  `json:"stock"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())

	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "barcode, name and categoryId are required")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), ProductInput{
		Barcode:    req.Barcode,
		Name:       req.Name,
		CategoryID: req.CategoryID,
		BuyPrice:   req.BuyPrice,
		SellPrice:  req.SellPrice,
		Stock:      req.Stock,
	}, sess.UserID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrDuplicate):
			httpx.Problem(w, http.StatusConflict, "Conflict", "a product with this barcode already exists")
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "category does not exist")
		default:
			h.logger.Error("create product", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	h.logger.Info("product created", slog.String("barcode", product.Barcode), slog.Int64("actor_id", sess.UserID))
	httpx.JSON(w, http.StatusCreated, map[string]any{"product": product})
}

type updateProductRequest struct {
	Name       *string `json:"name,omitempty"`
	CategoryID *int64  `json:"categoryId,omitempty"`
	BuyPrice   *int64  `json:"buyPrice,omitempty" validate:"omitempty,min=0"`
	SellPrice  *int64  `json:"sellPrice,omitempty" validate:"omitempty,min=0"`
	Stock      *int64  `json:"stock,omitempty"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	barcode := chi.URLParam(r, "barcode")

	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "prices must not be negative")
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), barcode, ProductUpdate{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		BuyPrice:   req.BuyPrice,
		SellPrice:  req.SellPrice,
		Stock:      req.Stock,
	}, sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product or category does not exist")
			return
		}
		h.logger.Error("update product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("product updated", slog.String("barcode", barcode), slog.Int64("actor_id", sess.UserID))
	httpx.JSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	barcode := chi.URLParam(r, "barcode")

	product, err := h.service.DeleteProduct(r.Context(), barcode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product does not exist")
			return
		}
		h.logger.Error("delete product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("product deleted", slog.String("barcode", barcode), slog.Int64("actor_id", sess.UserID))
	httpx.JSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.ParseInt(chi.URLParam(r, "categoryId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "categoryId must be an integer")
		return
	}

	category, err := h.service.FindCategoryByID(r.Context(), categoryID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "category does not exist")
			return
		}
		h.logger.Error("get category", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"category": category})
}

type categoryRequest struct {
	Description string `json:"description" validate:"required,min=1"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "description must not be empty")
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req.Description)
	if err != nil {
		httpx.RespondError(w, h.logger, "create category", err)
		return
	}

	h.logger.Info("category created", slog.Int64("category_id", category.ID))
	httpx.JSON(w, http.StatusCreated, map[string]any{"category": category})
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.ParseInt(chi.URLParam(r, "categoryId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "categoryId must be an integer")
		return
	}

	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "description must not be empty")
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), categoryID, req.Description)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "category does not exist")
			return
		}
		h.logger.Error("update category", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"category": category})
}

type deleteCategoryRequest struct {
	MoveProductsTo int64 `json:"moveProductsTo" validate:"required"`
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.ParseInt(chi.URLParam(r, "categoryId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "categoryId must be an integer")
		return
	}

	var req deleteCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil || req.MoveProductsTo == categoryID {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "moveProductsTo must name a different category")
		return
	}

	result, err := h.service.DeleteCategory(r.Context(), categoryID, req.MoveProductsTo)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "category does not exist")
			return
		}
		h.logger.Error("delete category", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("category deleted",
		slog.Int64("category_id", categoryID), slog.Int("moved_products", len(result.MovedProducts)))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"category":      result.Category,
		"movedProducts": result.MovedProducts,
	})
}

func (h *Handler) handleListBoxes(w http.ResponseWriter, r *http.Request) {
	boxes, err := h.service.ListBoxes(r.Context(), r.URL.Query().Get("productBarcode"))
	if err != nil {
		httpx.RespondError(w, h.logger, "list boxes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"boxes": boxes})
}

func (h *Handler) handleGetBox(w http.ResponseWriter, r *http.Request) {
	box, err := h.service.FindBoxByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "box does not exist")
			return
		}
		h.logger.Error("get box", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"box": box})
}

type createBoxRequest struct {
	BoxBarcode     string `json:"boxBarcode" validate:"required,min=1,max=14"`
	ProductBarcode string `json:"productBarcode" validate:"required,min=1,max=14"`
	ItemsPerBox    int64  `json:"itemsPerBox" validate:"required,min=1"`
}

func (h *Handler) handleCreateBox(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())

	var req createBoxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "boxBarcode, productBarcode and itemsPerBox are required")
		return
	}

	box, err := h.service.CreateBox(r.Context(), BoxInput{
		BoxBarcode:     req.BoxBarcode,
		ProductBarcode: req.ProductBarcode,
		ItemsPerBox:    req.ItemsPerBox,
	}, sess.UserID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrDuplicate):
			httpx.Problem(w, http.StatusConflict, "Conflict", "a box with this barcode already exists")
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product does not exist")
		default:
			h.logger.Error("create box", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	h.logger.Info("box created",
		slog.String("box_barcode", box.BoxBarcode), slog.Int64("actor_id", sess.UserID))
	httpx.JSON(w, http.StatusCreated, map[string]any{"box": box})
}

type updateBoxRequest struct {
	ProductBarcode *string `json:"productBarcode,omitempty" validate:"omitempty,min=1,max=14"`
	ItemsPerBox    *int64  `json:"itemsPerBox,omitempty" validate:"omitempty,min=1"`
}

func (h *Handler) handleUpdateBox(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	boxBarcode := chi.URLParam(r, "barcode")

	var req updateBoxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itemsPerBox must be a positive integer")
		return
	}

	box, err := h.service.UpdateBox(r.Context(), boxBarcode, BoxUpdate{
		ProductBarcode: req.ProductBarcode,
		ItemsPerBox:    req.ItemsPerBox,
	}, sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "box or product does not exist")
			return
		}
		h.logger.Error("update box", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"box": box})
}

func (h *Handler) handleDeleteBox(w http.ResponseWriter, r *http.Request) {
	sess, _ := shared.SessionFromContext(r.Context())
	boxBarcode := chi.URLParam(r, "barcode")

	box, err := h.service.DeleteBox(r.Context(), boxBarcode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "box does not exist")
			return
		}
		h.logger.Error("delete box", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.logger.Info("box deleted",
		slog.String("box_barcode", boxBarcode), slog.Int64("actor_id", sess.UserID))
	httpx.JSON(w, http.StatusOK, map[string]any{"box": box})
}
