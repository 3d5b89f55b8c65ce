package models

import "gorm.io/gorm"

// Bucket is a tenant-defined grouping of content items, populated manually or
// by accepted AI suggestions.
type Bucket struct {
	gorm.Model
	TenantID    uint   `gorm:"not null;uniqueIndex:idx_buckets_tenant_name,where:deleted_at IS NULL"`
	Name        string `gorm:"not null;uniqueIndex:idx_buckets_tenant_name,where:deleted_at IS NULL"`
	Description string `gorm:"type:text"`

	Items []BucketItem `gorm:"constraint:OnDelete:CASCADE;"`
}

// BucketItem links a content item into a bucket. AI-suggested memberships
// carry the suggestion confidence; only suggestions above the acceptance
// threshold are ever committed as rows.
type BucketItem struct {
	gorm.Model
	BucketID      uint        `gorm:"not null;uniqueIndex:idx_bucket_items_pair"`
	ContentItemID uint        `gorm:"not null;uniqueIndex:idx_bucket_items_pair"`
	Bucket        Bucket      `gorm:"constraint:OnDelete:CASCADE;"`
	ContentItem   ContentItem `gorm:"constraint:OnDelete:CASCADE;"`
	Confidence    float64     `gorm:"not null;default:0"`
	AddedByAI     bool        `gorm:"not null;default:false"`
}
