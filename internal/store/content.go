// Package store wraps the content item queries the pipeline components share.
package store

import (
	"fmt"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"gorm.io/gorm"
)

// PendingBatch selects up to limit unprocessed items for a tenant, ordered so
// that previously failed items (higher processing_priority as a result of
// batch errors) come after fresh items of the same priority level: priority
// ascending, then oldest first.
func PendingBatch(db *gorm.DB, tenantID uint, limit int) ([]models.ContentItem, error) {
	pending := true
	var items []models.ContentItem
	err := ContentFilter{TenantID: tenantID, NeedsProcessing: &pending}.
		Apply(db.Model(&models.ContentItem{})).
		Order("processing_priority asc").
		Order("posted_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select pending batch: %w", err)
	}
	return items, nil
}

// CountPending returns the number of items still awaiting classification.
func CountPending(db *gorm.DB, tenantID uint) (int64, error) {
	pending := true
	var count int64
	err := ContentFilter{TenantID: tenantID, NeedsProcessing: &pending}.
		Apply(db.Model(&models.ContentItem{})).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}

// ItemsInWindow returns a tenant's items posted within [start, end).
func ItemsInWindow(db *gorm.DB, tenantID uint, start, end time.Time) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := ContentFilter{TenantID: tenantID, PostedAfter: &start, PostedBefore: &end}.
		Apply(db.Model(&models.ContentItem{})).
		Order("posted_at asc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query window items: %w", err)
	}
	return items, nil
}
