package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder persists append-only window snapshots. Each aggregation run writes
// one row; the stored trends serve as the baseline for the next run's deltas.
type Recorder struct {
	db   *gorm.DB
	topN int
}

// NewRecorder creates a recorder. topN bounds the per-category top-item list.
func NewRecorder(db *gorm.DB, topN int) *Recorder {
	return &Recorder{db: db, topN: topN}
}

// Report computes the window report for a tenant without persisting anything.
func (r *Recorder) Report(ctx context.Context, tenantID uint, preset string, hours int, now time.Time) (*WindowReport, error) {
	current, previous, err := ResolveWindow(preset, hours, now)
	if err != nil {
		return nil, err
	}

	curItems, err := store.ItemsInWindow(r.db.WithContext(ctx), tenantID, current.Start, current.End)
	if err != nil {
		return nil, err
	}
	prevItems, err := store.ItemsInWindow(r.db.WithContext(ctx), tenantID, previous.Start, previous.End)
	if err != nil {
		return nil, err
	}

	report := ComputeWindowReport(current, previous, curItems, prevItems, r.topN)
	return &report, nil
}

// Snapshot computes and persists one aggregation run for the tenant.
func (r *Recorder) Snapshot(ctx context.Context, tenantID uint, hours int, now time.Time) (*WindowReport, error) {
	report, err := r.Report(ctx, tenantID, "", hours, now)
	if err != nil {
		return nil, err
	}

	trends, err := json.Marshal(report.Trends)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize category trends: %w", err)
	}

	snapshot := models.WindowMetricsSnapshot{
		TenantID:       tenantID,
		WindowHours:    report.Current.Hours(),
		WindowStart:    report.Current.Start,
		WindowEnd:      report.Current.End,
		TotalPosts:     report.TotalPosts,
		TotalComments:  report.TotalComments,
		CategoryTrends: datatypes.JSON(trends),
		CapturedAt:     now.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to write metrics snapshot: %w", err)
	}

	return report, nil
}
