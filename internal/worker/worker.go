package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedpulse/feedpulse/internal/alerts"
	"github.com/feedpulse/feedpulse/internal/classify"
	"github.com/feedpulse/feedpulse/internal/config"
	"github.com/feedpulse/feedpulse/internal/ingest"
	"github.com/feedpulse/feedpulse/internal/metrics"
	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/notify"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// topItemsPerCategory bounds the per-category item list in reports and alerts.
const topItemsPerCategory = 5

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, db *gorm.DB, src ingest.Source, classifier classify.Classifier, sink notify.Sink) (stop func(), err error) {
	srv, mux, lease, err := newServer(cfg, db, src, classifier, sink)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() {
		srv.Shutdown()
		lease.Close()
	}, nil
}

func newServer(cfg *config.Config, db *gorm.DB, src ingest.Source, classifier classify.Classifier, sink notify.Sink) (*asynq.Server, *asynq.ServeMux, *Lease, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	policies := map[string]RetryPolicy{
		TaskIngestFetch: DefaultRetryPolicy(),
		TaskClassifyRun: DefaultRetryPolicy(),
		TaskDigestRun:   DefaultRetryPolicy(),
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     10,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger, db)),
			RetryDelayFunc:  makeRetryDelayFunc(policies),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	// Dedicated Redis client for the per-tenant classification lease,
	// separate from the Asynq internal connection.
	lease, err := NewLease(cfg.RedisURL, cfg.LeaseTTL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create lease client: %w", err)
	}

	fetcher := ingest.NewFetcher(src, logger, cfg.FetchPageSize, cfg.ChannelDelay)
	upserter := ingest.NewUpserter(db, src, logger, cfg.ReplyTreeDelay)
	runner := classify.NewRunner(db, classifier, sink, logger, cfg.ClassifyBatchSize, cfg.BatchDelay, cfg.BucketAcceptance)
	recorder := metrics.NewRecorder(db, topItemsPerCategory)
	engine := alerts.NewEngine(db, sink, logger, topItemsPerCategory)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestFetch, handleIngestFetch(logger, db, fetcher, upserter))
	mux.HandleFunc(TaskClassifyRun, handleClassifyRun(logger, db, runner, lease))
	mux.HandleFunc(TaskDigestRun, handleDigestRun(logger, db, recorder, engine))

	logger.Info("Worker starting", "concurrency", 10, "redis", cfg.RedisURL)
	return srv, mux, lease, nil
}

// handleIngestFetch runs one tenant's fetch-and-upsert pass: pull every
// watched channel, persist posts and reply trees.
func handleIngestFetch(logger *slog.Logger, db *gorm.DB, fetcher *ingest.Fetcher, upserter *ingest.Upserter) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		tenant, prefs, err := loadTenantTask(ctx, db, task)
		if err != nil {
			return err
		}

		// Stopped between enqueue and run; nothing to do.
		if prefs == nil || !prefs.IngestionActive {
			logger.Info("Skipping fetch for inactive tenant", "tenant", tenant.Key())
			return nil
		}

		var channels []models.WatchedChannel
		if err := db.WithContext(ctx).Where("tenant_id = ?", tenant.ID).Find(&channels).Error; err != nil {
			return fmt.Errorf("failed to load watched channels: %w", err)
		}
		if len(channels) == 0 {
			logger.Info("No watched channels configured", "tenant", tenant.Key())
			return nil
		}

		logger.Info("Processing ingest:fetch task", "tenant", tenant.Key(), "channels", len(channels))

		byChannel := fetcher.Run(ctx, tenant, channels)
		if err := upserter.Ingest(ctx, tenant, byChannel); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("stopped by user: %w", err)
			}
			return err
		}
		return nil
	}
}

// handleClassifyRun runs one tenant's classification pass under the
// per-tenant lease so ticks never overlap a still-running previous tick.
func handleClassifyRun(logger *slog.Logger, db *gorm.DB, runner *classify.Runner, lease *Lease) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		tenant, prefs, err := loadTenantTask(ctx, db, task)
		if err != nil {
			return err
		}
		if prefs == nil || !prefs.TriggerCategorization {
			logger.Info("Skipping classification for tenant", "tenant", tenant.Key())
			return nil
		}

		leaseKey := ClassifyLeaseKey(tenant.Kind(), tenant.ID)
		token, ok, err := lease.Acquire(ctx, leaseKey)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Classification already running, skipping tick", "tenant", tenant.Key())
			return nil
		}
		defer func() {
			if err := lease.Release(context.Background(), leaseKey, token); err != nil {
				logger.Warn("Failed to release classification lease", "tenant", tenant.Key(), "error", err.Error())
			}
		}()

		logger.Info("Processing classify:run task", "tenant", tenant.Key())

		if err := runner.Run(ctx, tenant.ID); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("stopped by user: %w", err)
			}
			return err
		}
		return nil
	}
}

// handleDigestRun captures the tenant's window snapshot and evaluates the
// alert thresholds for this tick.
func handleDigestRun(logger *slog.Logger, db *gorm.DB, recorder *metrics.Recorder, engine *alerts.Engine) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		tenant, prefs, err := loadTenantTask(ctx, db, task)
		if err != nil {
			return err
		}

		hours := 24
		if prefs != nil && prefs.WindowHours > 0 {
			hours = prefs.WindowHours
		}

		now := time.Now().UTC()
		if _, err := recorder.Snapshot(ctx, tenant.ID, hours, now); err != nil {
			return err
		}

		state, err := engine.Tick(ctx, tenant.ID, now)
		if err != nil {
			return err
		}

		logger.Info("Digest tick completed", "tenant", tenant.Key(), "state", state.String())
		return nil
	}
}

// loadTenantTask decodes the payload and loads the tenant with preferences.
// A bad payload or vanished tenant is not retryable.
func loadTenantTask(ctx context.Context, db *gorm.DB, task *asynq.Task) (*models.Tenant, *models.Preferences, error) {
	var payload TenantPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, nil, fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}

	var tenant models.Tenant
	if err := db.WithContext(ctx).First(&tenant, payload.TenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("tenant %d not found: %w", payload.TenantID, asynq.SkipRetry)
		}
		return nil, nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	var prefs models.Preferences
	err := db.WithContext(ctx).Where("tenant_id = ?", tenant.ID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &tenant, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &tenant, &prefs, nil
}

// makeErrorHandler creates the failure hook: every task error is logged, and
// a final failure (retry budget exhausted) downgrades the tenant so the cron
// stops re-triggering a broken configuration. The tenant must explicitly
// restart ingestion or categorization afterwards.
func makeErrorHandler(logger *slog.Logger, db *gorm.DB) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried < maxRetry {
			return
		}

		var payload TenantPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Error("Cannot downgrade tenant for failed task, bad payload", "task_type", task.Type())
			return
		}

		switch task.Type() {
		case TaskIngestFetch:
			if err := db.Model(&models.Preferences{}).
				Where("tenant_id = ?", payload.TenantID).
				Update("ingestion_active", false).Error; err != nil {
				logger.Error("Failed to deactivate ingestion after repeated failures",
					"tenant_id", payload.TenantID, "error", err.Error())
				return
			}
			logger.Error("Ingestion disabled after repeated failures (restart required)",
				"tenant_id", payload.TenantID, "tenant_kind", payload.TenantKind)
		case TaskClassifyRun:
			if err := db.Model(&models.Preferences{}).
				Where("tenant_id = ?", payload.TenantID).
				Update("trigger_categorization", false).Error; err != nil {
				logger.Error("Failed to disable categorization after repeated failures",
					"tenant_id", payload.TenantID, "error", err.Error())
				return
			}
			logger.Error("Categorization disabled after repeated failures (restart required)",
				"tenant_id", payload.TenantID, "tenant_kind", payload.TenantKind)
		}
	}
}
