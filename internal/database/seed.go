package database

import (
	"log/slog"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	userID := "dev-user-1"
	var existing models.Tenant
	result := db.Where("user_id = ?", userID).First(&existing)
	if result.Error == nil {
		slog.Info("Seed data already exists, skipping")
		return nil
	}

	tenant := models.Tenant{
		UserID: &userID,
		Name:   "Dev Tenant",
	}
	if err := db.Create(&tenant).Error; err != nil {
		return err
	}

	prefs := models.Preferences{
		TenantID:               tenant.ID,
		IngestionActive:        false,
		IngestionCron:          "0 * * * *",
		TriggerCategorization:  true,
		Recipients:             datatypes.NewJSONSlice([]string{"dev@feedpulse.local"}),
		IssueThreshold:         5,
		VolumeMultiplier:       2,
		SentimentThreshold:     2,
		CommentGrowthThreshold: 20,
		WindowHours:            24,
	}
	if err := db.Create(&prefs).Error; err != nil {
		return err
	}

	channel := models.WatchedChannel{
		TenantID: tenant.ID,
		Name:     "gadgets",
		Keywords: datatypes.NewJSONSlice([]string{"acme", "acme phone"}),
	}
	if err := db.Create(&channel).Error; err != nil {
		return err
	}

	if err := ApplyStarterPack(db, tenant.ID); err != nil {
		return err
	}

	bucket := models.Bucket{
		TenantID:    tenant.ID,
		Name:        "Launch feedback",
		Description: "Feedback about the spring launch",
	}
	if err := db.Create(&bucket).Error; err != nil {
		return err
	}

	// One classified and one pending item so dashboards have data
	classified := models.ContentItem{
		TenantID:        tenant.ID,
		Channel:         channel.Name,
		ExternalID:      "seed-post-1",
		Title:           "Battery drains overnight after the update",
		Body:            "Since the last update my battery is empty every morning.",
		Author:          "devuser",
		Permalink:       "/r/gadgets/comments/seed-post-1",
		PostedAt:        time.Now().UTC().Add(-3 * time.Hour),
		Score:           42,
		CommentCount:    17,
		LastUpdated:     time.Now().UTC(),
		NeedsProcessing: false,
		Category:        "Performance",
		Product:         "General",
		SentimentScore:  1.5,
		SentimentLabel:  models.SentimentNegative,
		IssueMentions:   3,
	}
	if err := db.Create(&classified).Error; err != nil {
		return err
	}

	pending := models.ContentItem{
		TenantID:        tenant.ID,
		Channel:         channel.Name,
		ExternalID:      "seed-post-2",
		Title:           "Would love a dark mode",
		Author:          "devuser2",
		PostedAt:        time.Now().UTC().Add(-time.Hour),
		LastUpdated:     time.Now().UTC(),
		NeedsProcessing: true,
	}
	if err := db.Create(&pending).Error; err != nil {
		return err
	}

	slog.Info("Seeded dev data: 1 tenant, 1 channel, starter categories, 1 bucket, 2 content items")
	return nil
}
