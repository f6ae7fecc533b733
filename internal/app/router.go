package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ruokavalitys/rv-update-backend/internal/auth"
	"github.com/Ruokavalitys/rv-update-backend/internal/catalog"
	"github.com/Ruokavalitys/rv-update-backend/internal/history"
	"github.com/Ruokavalitys/rv-update-backend/internal/ledger"
	"github.com/Ruokavalitys/rv-update-backend/internal/observability"
	"github.com/Ruokavalitys/rv-update-backend/internal/prefs"
	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Metrics        *observability.Metrics
	AuthHandler    *auth.Handler
	AuthMiddleware auth.Middleware
	UsersHandler   *users.Handler
	CatalogHandler *catalog.Handler
	LedgerHandler  *ledger.Handler
	HistoryHandler *history.Handler
	PrefsHandler   *prefs.Handler
}

// NewRouter constructs the chi.Router for the kiosk API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireUser)
			r.Route("/user", func(r chi.Router) {
				params.UsersHandler.MountUserRoutes(r)
				params.LedgerHandler.MountDepositRoutes(r)
				params.HistoryHandler.MountUserRoutes(r)
			})
			r.Route("/products", func(r chi.Router) {
				params.CatalogHandler.MountUserRoutes(r)
				params.LedgerHandler.MountPurchaseRoutes(r)
			})
			r.Route("/categories", params.CatalogHandler.MountUserCategoryRoutes)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAdmin)
			r.Route("/admin/products", func(r chi.Router) {
				params.CatalogHandler.MountAdminProductRoutes(r)
				params.LedgerHandler.MountAdminProductRoutes(r)
			})
			r.Route("/admin/boxes", func(r chi.Router) {
				params.CatalogHandler.MountAdminBoxRoutes(r)
				params.LedgerHandler.MountAdminBoxRoutes(r)
			})
			r.Route("/admin/categories", params.CatalogHandler.MountAdminCategoryRoutes)
			r.Route("/admin/users", params.UsersHandler.MountAdminRoutes)
			r.Route("/admin/history", params.HistoryHandler.MountAdminRoutes)
			r.Route("/admin/preferences", params.PrefsHandler.MountAdminRoutes)
		})
	})

	return r
}
