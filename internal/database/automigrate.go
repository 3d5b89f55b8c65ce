package database

import (
	"fmt"

	"github.com/feedpulse/feedpulse/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates the schema from the GORM models. Tests (sqlite) and
// dev mode use this; production schemas go through the SQL migrations.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Tenant{},
		&models.Preferences{},
		&models.WatchedChannel{},
		&models.FeedbackCategory{},
		&models.ProductCategory{},
		&models.Bucket{},
		&models.ContentItem{},
		&models.Reply{},
		&models.BucketItem{},
		&models.WindowMetricsSnapshot{},
		&models.NotificationRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	return nil
}
