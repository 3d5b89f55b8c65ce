package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/hibiken/asynq"
)

// Task type constants, one per job class
const (
	TaskIngestFetch = "ingest:fetch"
	TaskClassifyRun = "classify:run"
	TaskDigestRun   = "digest:run"
)

// TenantPayload identifies the tenant a task run belongs to.
type TenantPayload struct {
	TenantID   uint   `json:"tenant_id"`
	TenantKind string `json:"tenant_kind"`
}

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before any Enqueue functions.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// NewTenantTask builds a task for one tenant and job class. The deterministic
// task ID makes the task unique per (jobClass, tenantKind, tenantID): a tick
// enqueued while the previous instance is still queued or running conflicts
// instead of piling up.
func NewTenantTask(taskType string, tenant *models.Tenant, policy RetryPolicy) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(TenantPayload{
		TenantID:   tenant.ID,
		TenantKind: tenant.Kind(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tenant payload: %w", err)
	}

	opts := append(policy.Options(), asynq.TaskID(TaskKeyID(taskType, tenant.Kind(), tenant.ID)))
	return asynq.NewTask(taskType, payload), opts, nil
}

// TaskKeyID is the deterministic task ID for a job class and tenant.
func TaskKeyID(taskType, tenantKind string, tenantID uint) string {
	return fmt.Sprintf("%s:%s:%d", taskType, tenantKind, tenantID)
}

// EnqueueTenantTask enqueues a one-off run of a job class for a tenant. An
// identical task already queued or running is not an error.
func EnqueueTenantTask(taskType string, tenant *models.Tenant, policy RetryPolicy) error {
	if client == nil {
		return fmt.Errorf("asynq client not initialized")
	}

	task, opts, err := NewTenantTask(taskType, tenant, policy)
	if err != nil {
		return err
	}

	if _, err := client.Enqueue(task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue %s for tenant %s: %w", taskType, tenant.Key(), err)
	}
	return nil
}
