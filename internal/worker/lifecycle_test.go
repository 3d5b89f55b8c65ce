package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feedpulse/feedpulse/internal/database"
	"github.com/feedpulse/feedpulse/internal/models"
)

// fakeScheduler records registrations in place of a live asynq scheduler.
type fakeScheduler struct {
	next       int
	registered map[string]string // entry ID -> cronspec
	taskTypes  map[string]string // entry ID -> task type
	unregs     []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		registered: make(map[string]string),
		taskTypes:  make(map[string]string),
	}
}

func (f *fakeScheduler) Start() error { return nil }
func (f *fakeScheduler) Shutdown()    {}

func (f *fakeScheduler) Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error) {
	f.next++
	entryID := fmt.Sprintf("entry-%d", f.next)
	f.registered[entryID] = cronspec
	f.taskTypes[entryID] = task.Type()
	return entryID, nil
}

func (f *fakeScheduler) Unregister(entryID string) error {
	delete(f.registered, entryID)
	delete(f.taskTypes, entryID)
	f.unregs = append(f.unregs, entryID)
	return nil
}

// fakeInspector records which task IDs were cancelled and deleted.
type fakeInspector struct {
	cancelled []string
	deleted   []string
}

func (f *fakeInspector) CancelProcessing(id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeInspector) DeleteTask(qname, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeInspector) Close() error { return nil }

func newLifecycleTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestManager(t *testing.T, db *gorm.DB) (*Manager, *fakeScheduler, *fakeInspector) {
	t.Helper()
	scheduler := newFakeScheduler()
	inspector := &fakeInspector{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newManager(scheduler, inspector, db, log, DefaultRetryPolicy()), scheduler, inspector
}

func seedActiveTenant(t *testing.T, db *gorm.DB, kind, subject string) *models.Tenant {
	t.Helper()
	tenant := models.Tenant{}
	if kind == models.TenantKindUser {
		tenant.UserID = &subject
	} else {
		tenant.OrgID = &subject
	}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	prefs := models.Preferences{
		TenantID:              tenant.ID,
		IngestionCron:         "0 * * * *",
		TriggerCategorization: true,
	}
	if err := db.Create(&prefs).Error; err != nil {
		t.Fatalf("create preferences: %v", err)
	}
	return &tenant
}

func ingestionActive(t *testing.T, db *gorm.DB, tenantID uint) bool {
	t.Helper()
	var prefs models.Preferences
	if err := db.Where("tenant_id = ?", tenantID).First(&prefs).Error; err != nil {
		t.Fatalf("load preferences: %v", err)
	}
	return prefs.IngestionActive
}

func TestStopIngestionIsolatesTenant(t *testing.T) {
	db := newLifecycleTestDB(t)
	m, scheduler, inspector := newTestManager(t, db)

	alice := seedActiveTenant(t, db, models.TenantKindUser, "alice")
	acme := seedActiveTenant(t, db, models.TenantKindOrg, "acme")

	for _, tenant := range []*models.Tenant{alice, acme} {
		if err := m.StartIngestion(context.Background(), tenant, ""); err != nil {
			t.Fatalf("StartIngestion(%s): %v", tenant.Key(), err)
		}
	}
	if len(scheduler.registered) != 6 {
		t.Fatalf("registered entries = %d, want 3 per tenant", len(scheduler.registered))
	}

	if err := m.StopIngestion(context.Background(), alice); err != nil {
		t.Fatalf("StopIngestion: %v", err)
	}

	if keys := m.registry.ForTenant(alice.Kind(), alice.ID); len(keys) != 0 {
		t.Errorf("stopped tenant still has %d registered schedules", len(keys))
	}
	if keys := m.registry.ForTenant(acme.Kind(), acme.ID); len(keys) != 3 {
		t.Errorf("other tenant has %d schedules, want 3 untouched", len(keys))
	}
	if len(scheduler.registered) != 3 {
		t.Errorf("scheduler entries = %d after stop, want 3", len(scheduler.registered))
	}

	wantFetch := TaskKeyID(TaskIngestFetch, alice.Kind(), alice.ID)
	foundFetch := false
	for _, id := range inspector.cancelled {
		if id == wantFetch {
			foundFetch = true
		}
		if id == TaskKeyID(TaskIngestFetch, acme.Kind(), acme.ID) {
			t.Errorf("cancelled the other tenant's fetch task %s", id)
		}
	}
	if !foundFetch {
		t.Errorf("active fetch %s was not cancelled, got %v", wantFetch, inspector.cancelled)
	}
	if len(inspector.cancelled) != 3 || len(inspector.deleted) != 3 {
		t.Errorf("sweep touched %d cancelled / %d deleted task IDs, want 3 each",
			len(inspector.cancelled), len(inspector.deleted))
	}

	if ingestionActive(t, db, alice.ID) {
		t.Error("stopped tenant still marked ingestion_active")
	}
	if !ingestionActive(t, db, acme.ID) {
		t.Error("other tenant lost ingestion_active")
	}
}

func TestStartIngestionRejectsMalformedCron(t *testing.T) {
	db := newLifecycleTestDB(t)
	m, scheduler, _ := newTestManager(t, db)
	tenant := seedActiveTenant(t, db, models.TenantKindUser, "bob")

	err := m.StartIngestion(context.Background(), tenant, "every five minutes")
	if !errors.Is(err, ErrInvalidCron) {
		t.Fatalf("err = %v, want ErrInvalidCron", err)
	}

	if ingestionActive(t, db, tenant.ID) {
		t.Error("malformed cron must not leave the tenant active")
	}
	if len(scheduler.registered) != 0 {
		t.Errorf("registered %d schedules for a rejected cron", len(scheduler.registered))
	}
}

func TestStartIngestionReplacesFetchSchedule(t *testing.T) {
	db := newLifecycleTestDB(t)
	m, scheduler, _ := newTestManager(t, db)
	tenant := seedActiveTenant(t, db, models.TenantKindUser, "carol")

	if err := m.StartIngestion(context.Background(), tenant, "@every 30m"); err != nil {
		t.Fatalf("StartIngestion: %v", err)
	}
	if err := m.StartIngestion(context.Background(), tenant, "@every 10m"); err != nil {
		t.Fatalf("StartIngestion (restart): %v", err)
	}

	if keys := m.registry.ForTenant(tenant.Kind(), tenant.ID); len(keys) != 3 {
		t.Fatalf("registry keys = %d, want 3 after replacement", len(keys))
	}
	if len(scheduler.registered) != 3 {
		t.Errorf("scheduler entries = %d, want 3 (replaced, not duplicated)", len(scheduler.registered))
	}
	if len(scheduler.unregs) != 3 {
		t.Errorf("unregistered %d old entries, want 3", len(scheduler.unregs))
	}

	key := JobKey{Class: JobClassFetch, TenantKind: tenant.Kind(), TenantID: tenant.ID}
	entryID, ok := m.registry.Get(key)
	if !ok {
		t.Fatal("fetch schedule missing from registry")
	}
	if cronspec := scheduler.registered[entryID]; cronspec != "@every 10m" {
		t.Errorf("fetch cron = %q, want the replacement", cronspec)
	}
}

func TestKillAllSweepsEveryTenantAndDrainsRegistry(t *testing.T) {
	db := newLifecycleTestDB(t)
	m, scheduler, _ := newTestManager(t, db)

	alice := seedActiveTenant(t, db, models.TenantKindUser, "alice")
	acme := seedActiveTenant(t, db, models.TenantKindOrg, "acme")
	for _, tenant := range []*models.Tenant{alice, acme} {
		if err := m.StartIngestion(context.Background(), tenant, ""); err != nil {
			t.Fatalf("StartIngestion(%s): %v", tenant.Key(), err)
		}
	}

	// A schedule whose tenant row is gone must still be drained.
	orphan := JobKey{Class: JobClassFetch, TenantKind: models.TenantKindUser, TenantID: 999}
	m.registry.Put(orphan, "entry-orphan")

	if err := m.KillAll(context.Background()); err != nil {
		t.Fatalf("KillAll: %v", err)
	}

	if keys := m.registry.Keys(); len(keys) != 0 {
		t.Errorf("registry still holds %d keys after kill-all", len(keys))
	}
	if len(scheduler.registered) != 0 {
		t.Errorf("scheduler still holds %d entries after kill-all", len(scheduler.registered))
	}
	if ingestionActive(t, db, alice.ID) || ingestionActive(t, db, acme.ID) {
		t.Error("kill-all left a tenant marked ingestion_active")
	}

	drainedOrphan := false
	for _, id := range scheduler.unregs {
		if id == "entry-orphan" {
			drainedOrphan = true
		}
	}
	if !drainedOrphan {
		t.Error("orphaned schedule was not unregistered")
	}
}

func TestRunNowEnqueuesJobClass(t *testing.T) {
	db := newLifecycleTestDB(t)
	m, _, _ := newTestManager(t, db)
	tenant := seedActiveTenant(t, db, models.TenantKindUser, "dave")

	var gotType, gotKey string
	m.enqueue = func(taskType string, tenant *models.Tenant, policy RetryPolicy) error {
		gotType = taskType
		gotKey = tenant.Key()
		return nil
	}

	if err := m.RunNow(JobClassClassify, tenant); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if gotType != TaskClassifyRun {
		t.Errorf("task type = %q, want %q", gotType, TaskClassifyRun)
	}
	if gotKey != tenant.Key() {
		t.Errorf("tenant key = %q, want %q", gotKey, tenant.Key())
	}
}
