package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification kind constants
const (
	NotificationKindThreshold = "threshold"
	NotificationKindBucket    = "bucket"
)

// NotificationRecord is the append-only audit of every alert sent: which
// categories fired, which content items were referenced, who received it and
// when. Written in the same transaction that advances Preferences.LastNotified.
type NotificationRecord struct {
	gorm.Model
	AlertID  string `gorm:"not null;uniqueIndex"`
	TenantID uint   `gorm:"not null;index"`
	Kind     string `gorm:"not null"`

	Categories     datatypes.JSONSlice[string]
	ContentItemIDs datatypes.JSONSlice[uint]
	Recipients     datatypes.JSONSlice[string]

	Subject string    `gorm:"not null"`
	SentAt  time.Time `gorm:"not null"`
}
