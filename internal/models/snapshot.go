package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WindowMetricsSnapshot is an append-only record of one aggregation run. The
// serialized category trends become the baseline for the next run's deltas.
// Rows are never updated or deleted by the pipeline.
type WindowMetricsSnapshot struct {
	gorm.Model
	TenantID    uint      `gorm:"not null;index"`
	WindowHours int       `gorm:"not null"`
	WindowStart time.Time `gorm:"not null"`
	WindowEnd   time.Time `gorm:"not null"`

	TotalPosts    int `gorm:"not null;default:0"`
	TotalComments int `gorm:"not null;default:0"`

	// Serialized []metrics.CategoryTrend for the window
	CategoryTrends datatypes.JSON `gorm:"type:jsonb"`

	CapturedAt time.Time `gorm:"not null;index"`
}
