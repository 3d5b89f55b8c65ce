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

	"github.com/feedpulse/feedpulse/internal/api"
	"github.com/feedpulse/feedpulse/internal/classify"
	"github.com/feedpulse/feedpulse/internal/config"
	"github.com/feedpulse/feedpulse/internal/database"
	"github.com/feedpulse/feedpulse/internal/metrics"
	"github.com/feedpulse/feedpulse/internal/notify"
	"github.com/feedpulse/feedpulse/internal/reddit"
	"github.com/feedpulse/feedpulse/internal/worker"
)

const topItemsPerCategory = 5

func main() {
	cfg := config.Load()

	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logger.Error("Failed to run migrations", "error", err.Error())
		os.Exit(1)
	}

	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			logger.Error("Failed to seed dev data", "error", err.Error())
			os.Exit(1)
		}
	}

	if err := worker.InitClient(cfg.RedisURL); err != nil {
		logger.Error("Failed to init task client", "error", err.Error())
		os.Exit(1)
	}
	defer worker.CloseClient()

	src := reddit.NewClient(cfg.RedditBaseURL, cfg.RedditUserAgent)

	classifier, err := classify.NewClient(cfg.ClassifierURL, cfg.ClassifierSecret, cfg.ClassifierStub)
	if err != nil {
		logger.Error("Failed to build classifier client", "error", err.Error())
		os.Exit(1)
	}

	sink := notify.NewRelay(cfg.NotifyWebhookURL, cfg.NotifySecret, cfg.NotifyStub)

	stopWorker, err := worker.Start(cfg, db, src, classifier, sink)
	if err != nil {
		logger.Error("Failed to start worker", "error", err.Error())
		os.Exit(1)
	}
	defer stopWorker()

	manager, err := worker.NewManager(cfg.RedisURL, db, logger, worker.DefaultRetryPolicy())
	if err != nil {
		logger.Error("Failed to build lifecycle manager", "error", err.Error())
		os.Exit(1)
	}
	if err := manager.Rebuild(context.Background()); err != nil {
		logger.Error("Failed to rebuild schedules", "error", err.Error())
		os.Exit(1)
	}
	if err := manager.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err.Error())
		os.Exit(1)
	}
	defer manager.Shutdown()

	recorder := metrics.NewRecorder(db, topItemsPerCategory)
	router := api.NewRouter(cfg, db, manager, recorder, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err.Error())
	}
}
