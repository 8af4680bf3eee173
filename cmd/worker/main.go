package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"billingflow/app"
	"billingflow/billing"
	"billingflow/db"
	"billingflow/document"
	"billingflow/jobs"
	"billingflow/notification"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("bootstrap database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := billing.NewRepository(pool)
	documents := document.NewClient(cfg.DocumentServiceURL, logger)
	notifier := notification.NewClient(notification.Config{
		BaseURL:       cfg.NotificationServiceURL,
		SigningSecret: cfg.LinkSigningSecret,
		LinkTTL:       cfg.DocumentLinkTTL,
	}, logger)

	var engineOpts []billing.EngineOption
	if cfg.StrictAdvance {
		engineOpts = append(engineOpts, billing.WithStrictAdvance())
	}
	engine := billing.NewEngine(repo, documents, notifier, logger, engineOpts...)
	handler := jobs.NewHandler(engine, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				jobs.QueueDefault: 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskTypeProcessPending, handler.HandleProcessPending)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(mux)
	}()

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))

	select {
	case <-ctx.Done():
		srv.Shutdown()
	case err := <-errCh:
		if err != nil {
			logger.Error("worker stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
