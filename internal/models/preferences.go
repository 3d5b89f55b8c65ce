package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Preferences holds a tenant's ingestion schedule, categorization trigger and
// notification thresholds. One record per tenant.
type Preferences struct {
	gorm.Model
	TenantID uint   `gorm:"not null;uniqueIndex"`
	Tenant   Tenant `gorm:"constraint:OnDelete:CASCADE;"`

	IngestionActive       bool   `gorm:"not null;default:false"`
	IngestionCron         string `gorm:"not null;default:'0 * * * *'"`
	TriggerCategorization bool   `gorm:"not null;default:true"`

	// Notification config. NotificationsEnabled is derived from Recipients on
	// every write (enabled == recipients non-empty).
	NotificationsEnabled bool                         `gorm:"not null;default:false"`
	Recipients           datatypes.JSONSlice[string]

	IssueThreshold         int     `gorm:"not null;default:5"`
	VolumeMultiplier       float64 `gorm:"not null;default:2"`
	SentimentThreshold     float64 `gorm:"not null;default:2"`
	CommentGrowthThreshold int     `gorm:"not null;default:20"`
	WindowHours            int     `gorm:"not null;default:24"`

	// LastNotified drives the alert cooldown: no second notification within
	// WindowHours of this timestamp.
	LastNotified *time.Time
}

// BeforeSave keeps the enabled flag in lockstep with the recipient list.
// The invariant is enforced on write, not on read.
func (p *Preferences) BeforeSave(tx *gorm.DB) error {
	p.NotificationsEnabled = len(p.Recipients) > 0
	return nil
}

// Window returns the tenant's notification window as a duration.
func (p *Preferences) Window() time.Duration {
	return time.Duration(p.WindowHours) * time.Hour
}
