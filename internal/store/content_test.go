package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feedpulse/feedpulse/internal/database"
	"github.com/feedpulse/feedpulse/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:store_%s?mode=memory&cache=shared", uuid.NewString())

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

func seedTenant(t *testing.T, db *gorm.DB, subject string) *models.Tenant {
	t.Helper()
	tenant := models.Tenant{UserID: &subject}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return &tenant
}

func seedItem(t *testing.T, db *gorm.DB, item models.ContentItem) models.ContentItem {
	t.Helper()
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func TestPendingBatchOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db, "u-batch")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Priority wins over age; within a priority, oldest first.
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "late-bumped",
		Title: "late bumped", PostedAt: base.Add(2 * time.Hour), NeedsProcessing: true, ProcessingPriority: 1})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "old",
		Title: "old", PostedAt: base, NeedsProcessing: true})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "new",
		Title: "new", PostedAt: base.Add(time.Hour), NeedsProcessing: true})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "done",
		Title: "done", PostedAt: base, NeedsProcessing: false})

	batch, err := PendingBatch(db, tenant.ID, 10)
	if err != nil {
		t.Fatalf("PendingBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("got %d items, want 3", len(batch))
	}
	want := []string{"old", "new", "late-bumped"}
	for i, id := range want {
		if batch[i].ExternalID != id {
			t.Errorf("batch[%d] = %s, want %s", i, batch[i].ExternalID, id)
		}
	}

	limited, err := PendingBatch(db, tenant.ID, 2)
	if err != nil {
		t.Fatalf("PendingBatch: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d items, want 2", len(limited))
	}

	count, err := CountPending(db, tenant.ID)
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if count != 3 {
		t.Errorf("pending count = %d, want 3", count)
	}
}

func TestPendingBatchScopedToTenant(t *testing.T) {
	db := newTestDB(t)
	a := seedTenant(t, db, "u-a")
	b := seedTenant(t, db, "u-b")
	now := time.Now().UTC()

	seedItem(t, db, models.ContentItem{TenantID: a.ID, Channel: "c", ExternalID: "a1",
		Title: "a1", PostedAt: now, NeedsProcessing: true})
	seedItem(t, db, models.ContentItem{TenantID: b.ID, Channel: "c", ExternalID: "b1",
		Title: "b1", PostedAt: now, NeedsProcessing: true})

	batch, err := PendingBatch(db, a.ID, 10)
	if err != nil {
		t.Fatalf("PendingBatch: %v", err)
	}
	if len(batch) != 1 || batch[0].ExternalID != "a1" {
		t.Fatalf("got %+v, want only a1", batch)
	}
}

func TestItemsInWindowBoundaries(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db, "u-window")
	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "at-start",
		Title: "at start", PostedAt: start})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "inside",
		Title: "inside", PostedAt: start.Add(time.Hour)})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "at-end",
		Title: "at end", PostedAt: end})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "c", ExternalID: "before",
		Title: "before", PostedAt: start.Add(-time.Minute)})

	items, err := ItemsInWindow(db, tenant.ID, start, end)
	if err != nil {
		t.Fatalf("ItemsInWindow: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (start inclusive, end exclusive)", len(items))
	}
}

func TestContentFilterApply(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db, "u-filter")
	now := time.Now().UTC()

	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "gadgets", ExternalID: "f1",
		Title: "battery drains fast", PostedAt: now, Category: "Bugs", SentimentLabel: models.SentimentNegative})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "gadgets", ExternalID: "f2",
		Title: "love the screen", PostedAt: now, Category: "UX", SentimentLabel: models.SentimentPositive})
	seedItem(t, db, models.ContentItem{TenantID: tenant.ID, Channel: "other", ExternalID: "f3",
		Title: "battery question", PostedAt: now, Category: "Bugs", SentimentLabel: models.SentimentNeutral})

	count := func(f ContentFilter) int {
		t.Helper()
		var items []models.ContentItem
		if err := f.Apply(db).Find(&items).Error; err != nil {
			t.Fatalf("apply filter: %v", err)
		}
		return len(items)
	}

	if got := count(ContentFilter{TenantID: tenant.ID}); got != 3 {
		t.Errorf("tenant filter: got %d, want 3", got)
	}
	if got := count(ContentFilter{TenantID: tenant.ID, Channel: "gadgets"}); got != 2 {
		t.Errorf("channel filter: got %d, want 2", got)
	}
	if got := count(ContentFilter{TenantID: tenant.ID, Category: "Bugs"}); got != 2 {
		t.Errorf("category filter: got %d, want 2", got)
	}
	if got := count(ContentFilter{TenantID: tenant.ID, Channel: "gadgets", Category: "Bugs"}); got != 1 {
		t.Errorf("combined filter: got %d, want 1", got)
	}
	if got := count(ContentFilter{TenantID: tenant.ID, SentimentLabel: models.SentimentPositive}); got != 1 {
		t.Errorf("sentiment filter: got %d, want 1", got)
	}
	if got := count(ContentFilter{TenantID: tenant.ID, Search: "battery"}); got != 2 {
		t.Errorf("search filter: got %d, want 2", got)
	}
}
