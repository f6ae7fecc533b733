package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ruokavalitys/rv-update-backend/internal/app"
	"github.com/Ruokavalitys/rv-update-backend/internal/auth"
	"github.com/Ruokavalitys/rv-update-backend/internal/catalog"
	"github.com/Ruokavalitys/rv-update-backend/internal/history"
	"github.com/Ruokavalitys/rv-update-backend/internal/ledger"
	"github.com/Ruokavalitys/rv-update-backend/internal/observability"
	"github.com/Ruokavalitys/rv-update-backend/internal/platform/cache"
	"github.com/Ruokavalitys/rv-update-backend/internal/platform/db"
	"github.com/Ruokavalitys/rv-update-backend/internal/prefs"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)
	metrics := observability.NewMetrics()

	prefsRepo := prefs.NewRepository(pool)
	prefsService := prefs.NewService(prefsRepo, logger)
	prefsHandler := prefs.NewHandler(logger, prefsService)

	catalogCache := catalog.NewListCache(redisClient, cfg.CacheTTL, logger)
	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, logger, catalogCache).WithMargins(prefsService)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	historyRepo := history.NewRepository(pool)
	historyService := history.NewService(historyRepo, redisClient, cfg.CacheTTL, logger)
	historyHandler := history.NewHandler(logger, historyService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, logger, ledger.ServiceConfig{
		ReturnWindow: cfg.ReturnWindow,
		Invalidate: func(ctx context.Context) {
			catalogService.Invalidate(ctx)
			historyService.Invalidate(ctx)
		},
	})

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, ledgerService, logger)
	usersHandler := users.NewHandler(logger, usersService)

	ledgerHandler := ledger.NewHandler(logger, ledgerService, catalogService, usersService, catalogService).
		WithIdempotency(shared.NewIdempotencyStore(pool))

	authService := auth.NewService(usersService)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.NewMiddleware(logger, sessionManager)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		UsersHandler:   usersHandler,
		CatalogHandler: catalogHandler,
		LedgerHandler:  ledgerHandler,
		HistoryHandler: historyHandler,
		PrefsHandler:   prefsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
