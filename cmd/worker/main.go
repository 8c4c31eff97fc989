package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/procura-ims/procura/internal/app"
	"github.com/procura-ims/procura/internal/items"
	jobmetrics "github.com/procura-ims/procura/internal/jobs"
	"github.com/procura-ims/procura/internal/notify"
	"github.com/procura-ims/procura/internal/platform/db"
	"github.com/procura-ims/procura/internal/procurement"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
	"github.com/procura-ims/procura/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	gate := rbac.NewGate()
	activityLogger := shared.NewActivityLogger(pool)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	publisher := notify.NewQueuePublisher(queueClient, nil, logger)

	itemsRepo := items.NewRepository(pool)
	itemsService := items.NewService(itemsRepo, gate, activityLogger, publisher, logger)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, gate, activityLogger, publisher, publisher, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Metrics:   jobmetrics.NewMetrics(nil),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeOutboundEvent, Handler: jobs.NewOutboundEventHandler(logger)},
			{Type: jobs.TaskTypeExpirySweep, Handler: jobs.NewExpirySweepHandler(itemsService.SweepExpired, logger)},
			{Type: jobs.TaskTypeDelayedSweep, Handler: jobs.NewDelayedSweepHandler(procurementService.MarkDelayed, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: jobs.NewExpirySweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewDelayedSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
