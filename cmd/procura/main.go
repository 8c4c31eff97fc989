package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procura-ims/procura/internal/app"
	"github.com/procura-ims/procura/internal/auth"
	"github.com/procura-ims/procura/internal/items"
	"github.com/procura-ims/procura/internal/notify"
	"github.com/procura-ims/procura/internal/observability"
	"github.com/procura-ims/procura/internal/platform/cache"
	"github.com/procura-ims/procura/internal/platform/db"
	"github.com/procura-ims/procura/internal/procurement"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
	"github.com/procura-ims/procura/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	gate := rbac.NewGate()
	rbacMiddleware := rbac.Middleware{Gate: gate, Logger: logger}
	activityLogger := shared.NewActivityLogger(pool)
	metrics := observability.NewMetrics()

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	publisher := notify.NewQueuePublisher(queueClient, metrics, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	itemsRepo := items.NewRepository(pool)
	itemsService := items.NewService(itemsRepo, gate, activityLogger, publisher, logger)
	itemsHandler := items.NewHandler(logger, itemsService, rbacMiddleware)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, gate, activityLogger, publisher, publisher, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService, rbacMiddleware)
	portalHandler := procurement.NewPortalHandler(logger, procurementService, rbacMiddleware)

	notifyRepo := notify.NewRepository(pool)
	notifyHandler := notify.NewHandler(logger, notifyRepo, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		ItemsHandler:       itemsHandler,
		ProcurementHandler: procurementHandler,
		PortalHandler:      portalHandler,
		NotifyHandler:      notifyHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
