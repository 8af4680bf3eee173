package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"billingflow/app"
	"billingflow/billing"
	"billingflow/db"
	"billingflow/document"
	"billingflow/httpapi"
	"billingflow/jobs"
	"billingflow/notification"
	"billingflow/storage"
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

	writer := billing.NewWriter(repo, logger)
	var engineOpts []billing.EngineOption
	if cfg.StrictAdvance {
		engineOpts = append(engineOpts, billing.WithStrictAdvance())
	}
	engine := billing.NewEngine(repo, documents, notifier, logger, engineOpts...)

	store := storage.NewLocal(cfg.StorageDir)
	svc := billing.NewService(repo, writer, engine, store, logger)

	var enqueuer httpapi.Enqueuer
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		enqueuer = jobs.NewEnqueuer(client)
	}

	handler := httpapi.New(svc, store, enqueuer, pool, documents, notifier, logger)
	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      httpapi.NewRouter(handler, cfg.UploadRateLimit),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", slog.String("addr", cfg.AppAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
