package store

import (
	"time"

	"gorm.io/gorm"
)

// ContentFilter is a typed filter for content item queries. Zero-valued
// fields are skipped, so callers compose only the constraints they need
// instead of building ad-hoc where maps.
type ContentFilter struct {
	TenantID        uint
	Channel         string
	Category        string
	Product         string
	SentimentLabel  string
	NeedsProcessing *bool
	PostedAfter     *time.Time
	PostedBefore    *time.Time
	Search          string
}

// Apply adds the filter's constraints to a query chain.
func (f ContentFilter) Apply(db *gorm.DB) *gorm.DB {
	if f.TenantID != 0 {
		db = db.Where("tenant_id = ?", f.TenantID)
	}
	if f.Channel != "" {
		db = db.Where("channel = ?", f.Channel)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.Product != "" {
		db = db.Where("product = ?", f.Product)
	}
	if f.SentimentLabel != "" {
		db = db.Where("sentiment_label = ?", f.SentimentLabel)
	}
	if f.NeedsProcessing != nil {
		db = db.Where("needs_processing = ?", *f.NeedsProcessing)
	}
	if f.PostedAfter != nil {
		db = db.Where("posted_at >= ?", *f.PostedAfter)
	}
	if f.PostedBefore != nil {
		db = db.Where("posted_at < ?", *f.PostedBefore)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		db = db.Where("title LIKE ? OR body LIKE ?", like, like)
	}
	return db
}
