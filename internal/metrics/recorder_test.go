package metrics

import (
	"context"
	"encoding/json"
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
	dsn := fmt.Sprintf("file:metrics_%s?mode=memory&cache=shared", uuid.NewString())

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

func TestSnapshotPersistsAppendOnly(t *testing.T) {
	db := newTestDB(t)
	subject := "u-snap"
	tenant := models.Tenant{UserID: &subject}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	items := []models.ContentItem{
		{TenantID: tenant.ID, Channel: "c", ExternalID: "s1", Title: "s1",
			PostedAt: now.Add(-time.Hour), Category: "Bugs", CommentCount: 3, Score: 5},
		{TenantID: tenant.ID, Channel: "c", ExternalID: "s2", Title: "s2",
			PostedAt: now.Add(-2 * time.Hour), Category: "Bugs", CommentCount: 1},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	recorder := NewRecorder(db, 5)

	report, err := recorder.Snapshot(context.Background(), tenant.ID, 24, now)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if report.TotalPosts != 2 {
		t.Errorf("total posts = %d, want 2", report.TotalPosts)
	}

	if _, err := recorder.Snapshot(context.Background(), tenant.ID, 24, now.Add(time.Hour)); err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}

	var snapshots []models.WindowMetricsSnapshot
	if err := db.Where("tenant_id = ?", tenant.ID).Order("id").Find(&snapshots).Error; err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("got %d snapshots, want 2 (append-only)", len(snapshots))
	}

	first := snapshots[0]
	if first.WindowHours != 24 || first.TotalPosts != 2 || first.TotalComments != 4 {
		t.Errorf("snapshot = %+v", first)
	}

	var trends []CategoryTrend
	if err := json.Unmarshal(first.CategoryTrends, &trends); err != nil {
		t.Fatalf("decode trends: %v", err)
	}
	if len(trends) != 1 || trends[0].Category != "Bugs" || trends[0].Count != 2 {
		t.Errorf("trends = %+v", trends)
	}
}

func TestReportDoesNotPersist(t *testing.T) {
	db := newTestDB(t)
	subject := "u-report"
	tenant := models.Tenant{UserID: &subject}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	recorder := NewRecorder(db, 5)
	if _, err := recorder.Report(context.Background(), tenant.ID, PresetLast7Days, 0, time.Now()); err != nil {
		t.Fatalf("Report: %v", err)
	}

	var count int64
	db.Model(&models.WindowMetricsSnapshot{}).Count(&count)
	if count != 0 {
		t.Errorf("Report wrote %d snapshots, want 0", count)
	}
}
