package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const defaultQueue = "default"

// ErrInvalidCron rejects a malformed cron expression before it is persisted.
var ErrInvalidCron = errors.New("invalid cron expression")

// Cadences for the job classes that do not follow the tenant's own cron.
const (
	classifyCron = "@every 5m"
	digestCron   = "@every 1h"
)

// schedulerBackend is the slice of *asynq.Scheduler the manager uses.
type schedulerBackend interface {
	Start() error
	Shutdown()
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (entryID string, err error)
	Unregister(entryID string) error
}

// inspectorBackend is the slice of *asynq.Inspector the manager uses.
type inspectorBackend interface {
	CancelProcessing(id string) error
	DeleteTask(qname, id string) error
	Close() error
}

// Manager owns the recurring schedules and their lifecycle: per-tenant
// registration, replacement on cron changes, stop sweeps and kill-all.
type Manager struct {
	scheduler schedulerBackend
	inspector inspectorBackend
	registry  *Registry
	db        *gorm.DB
	logger    *slog.Logger
	policy    RetryPolicy
	enqueue   func(taskType string, tenant *models.Tenant, policy RetryPolicy) error
}

// NewManager creates a lifecycle manager. Call Start to run the scheduler
// and Rebuild to restore schedules for tenants already active in the store.
func NewManager(redisURL string, db *gorm.DB, logger *slog.Logger, policy RetryPolicy) (*Manager, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	return newManager(scheduler, asynq.NewInspector(redisOpt), db, logger, policy), nil
}

func newManager(scheduler schedulerBackend, inspector inspectorBackend, db *gorm.DB, logger *slog.Logger, policy RetryPolicy) *Manager {
	return &Manager{
		scheduler: scheduler,
		inspector: inspector,
		registry:  NewRegistry(),
		db:        db,
		logger:    logger,
		policy:    policy,
		enqueue:   EnqueueTenantTask,
	}
}

// Start starts the scheduler (non-blocking).
func (m *Manager) Start() error {
	if err := m.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Shutdown stops the scheduler and closes the inspector.
func (m *Manager) Shutdown() {
	m.scheduler.Shutdown()
	m.inspector.Close()
}

// StartIngestion activates a tenant's pipeline: persist the active flag and
// cron in Preferences, then register (or replace) the recurring schedules.
// The cronspec is validated before anything is persisted so a malformed
// string can never leave the tenant active without a schedule.
func (m *Manager) StartIngestion(ctx context.Context, tenant *models.Tenant, cronspec string) error {
	if cronspec != "" {
		if _, err := cron.ParseStandard(cronspec); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidCron, cronspec, err)
		}
	}

	var prefs models.Preferences
	err := m.db.WithContext(ctx).Where("tenant_id = ?", tenant.ID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prefs = models.Preferences{TenantID: tenant.ID}
	} else if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	prefs.IngestionActive = true
	if cronspec != "" {
		prefs.IngestionCron = cronspec
	}
	if err := m.db.WithContext(ctx).Save(&prefs).Error; err != nil {
		return fmt.Errorf("failed to persist ingestion preferences: %w", err)
	}

	return m.registerTenant(tenant, &prefs)
}

// StopIngestion removes a tenant's recurring schedules, terminates any
// queued or in-flight runs, and marks ingestion inactive. Safe to call for a
// tenant that was never started.
func (m *Manager) StopIngestion(ctx context.Context, tenant *models.Tenant) error {
	m.unregisterTenant(tenant)

	if err := m.SweepTenant(ctx, tenant); err != nil {
		return err
	}

	if err := m.db.WithContext(ctx).Model(&models.Preferences{}).
		Where("tenant_id = ?", tenant.ID).
		Update("ingestion_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate ingestion: %w", err)
	}

	m.logger.Info("Ingestion stopped", "tenant", tenant.Key())
	return nil
}

// SweepTenant terminates the tenant's job instances across every class:
// active runs are cancelled (they fail with a stopped-by-user error so the
// failure handler runs), queued/scheduled/retrying instances are deleted.
func (m *Manager) SweepTenant(ctx context.Context, tenant *models.Tenant) error {
	for _, class := range AllJobClasses {
		taskID := TaskKeyID(class.TaskType(), tenant.Kind(), tenant.ID)

		// Cancellation reaches in-flight handlers through their context.
		if err := m.inspector.CancelProcessing(taskID); err != nil {
			m.logger.Debug("No active task to cancel", "task_id", taskID, "detail", err.Error())
		}

		if err := m.inspector.DeleteTask(defaultQueue, taskID); err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			// Active tasks cannot be deleted; cancellation above will
			// terminate them.
			m.logger.Debug("Could not delete task", "task_id", taskID, "detail", err.Error())
		}
	}
	return nil
}

// KillAll sweeps every tenant's jobs and unregisters their schedules.
// Idempotent and safe to run repeatedly.
func (m *Manager) KillAll(ctx context.Context) error {
	var tenants []models.Tenant
	if err := m.db.WithContext(ctx).Find(&tenants).Error; err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	var errs []error
	for i := range tenants {
		if err := m.StopIngestion(ctx, &tenants[i]); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenants[i].Key(), err))
		}
	}

	// Schedules can outlive their tenant row; drain whatever is left.
	for _, key := range m.registry.Keys() {
		if entryID, ok := m.registry.Remove(key); ok {
			if err := m.scheduler.Unregister(entryID); err != nil {
				m.logger.Warn("Failed to unregister orphaned schedule",
					"task_id", key.TaskID(), "error", err.Error())
			}
		}
	}

	m.logger.Info("Kill-all sweep completed", "tenants", len(tenants), "errors", len(errs))
	if len(errs) > 0 {
		return fmt.Errorf("kill-all completed with failures: %w", errors.Join(errs...))
	}
	return nil
}

// RunNow enqueues a one-off run of a job class for the tenant, outside its
// recurring schedule. An identical run already queued or in flight is a
// no-op.
func (m *Manager) RunNow(class JobClass, tenant *models.Tenant) error {
	return m.enqueue(class.TaskType(), tenant, m.policy)
}

// Rebuild restores recurring schedules for every tenant whose ingestion is
// active in the store. Run once at boot: scheduler entries are process-local.
func (m *Manager) Rebuild(ctx context.Context) error {
	var prefs []models.Preferences
	if err := m.db.WithContext(ctx).Preload("Tenant").
		Where("ingestion_active = ?", true).
		Find(&prefs).Error; err != nil {
		return fmt.Errorf("failed to load active preferences: %w", err)
	}

	for i := range prefs {
		tenant := prefs[i].Tenant
		if err := m.registerTenant(&tenant, &prefs[i]); err != nil {
			m.logger.Error("Failed to restore tenant schedules",
				"tenant", tenant.Key(),
				"error", err.Error(),
			)
		}
	}

	m.logger.Info("Schedules rebuilt from store", "tenants", len(prefs))
	return nil
}

// registerTenant registers the tenant's three recurring schedules: fetch on
// the tenant's cron, classification and digest on fixed cadences.
func (m *Manager) registerTenant(tenant *models.Tenant, prefs *models.Preferences) error {
	if err := m.register(JobClassFetch, tenant, prefs.IngestionCron); err != nil {
		return err
	}
	if prefs.TriggerCategorization {
		if err := m.register(JobClassClassify, tenant, classifyCron); err != nil {
			return err
		}
	}
	return m.register(JobClassDigest, tenant, digestCron)
}

// register adds one recurring schedule under its job key, removing any
// existing entry for the same key first so a changed cron string replaces
// the old schedule instead of drifting alongside it.
func (m *Manager) register(class JobClass, tenant *models.Tenant, cronspec string) error {
	key := JobKey{Class: class, TenantKind: tenant.Kind(), TenantID: tenant.ID}

	if old, ok := m.registry.Remove(key); ok {
		if err := m.scheduler.Unregister(old); err != nil {
			m.logger.Warn("Failed to unregister replaced schedule",
				"tenant", tenant.Key(), "class", string(class), "error", err.Error())
		}
	}

	task, opts, err := NewTenantTask(class.TaskType(), tenant, m.policy)
	if err != nil {
		return err
	}

	entryID, err := m.scheduler.Register(cronspec, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s schedule for tenant %s: %w", class, tenant.Key(), err)
	}
	m.registry.Put(key, entryID)

	m.logger.Info("Schedule registered",
		"tenant", tenant.Key(),
		"class", string(class),
		"cron", cronspec,
		"entry_id", entryID,
	)
	return nil
}

// unregisterTenant removes every schedule registered for the tenant.
func (m *Manager) unregisterTenant(tenant *models.Tenant) {
	for _, key := range m.registry.ForTenant(tenant.Kind(), tenant.ID) {
		if entryID, ok := m.registry.Remove(key); ok {
			if err := m.scheduler.Unregister(entryID); err != nil {
				m.logger.Warn("Failed to unregister schedule",
					"tenant", tenant.Key(), "class", string(key.Class), "error", err.Error())
			}
		}
	}
}
