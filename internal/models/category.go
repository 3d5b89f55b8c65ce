package models

import "gorm.io/gorm"

// CategoryNoise is the sentinel category meaning "not classifiable / not
// relevant". Items land here when a tenant has no categories configured or
// when the classifier cannot place an item.
const CategoryNoise = "Noise"

// FeedbackCategory is a tenant-defined feedback grouping the classifier
// assigns content items to (e.g. "Battery", "Pricing").
type FeedbackCategory struct {
	gorm.Model
	TenantID    uint   `gorm:"not null;uniqueIndex:idx_categories_tenant_name,where:deleted_at IS NULL"`
	Name        string `gorm:"not null;uniqueIndex:idx_categories_tenant_name,where:deleted_at IS NULL"`
	Description string `gorm:"type:text"`
}

// ProductCategory is a tenant-defined product/area grouping, assigned
// alongside the feedback category.
type ProductCategory struct {
	gorm.Model
	TenantID    uint   `gorm:"not null;uniqueIndex:idx_products_tenant_name,where:deleted_at IS NULL"`
	Name        string `gorm:"not null;uniqueIndex:idx_products_tenant_name,where:deleted_at IS NULL"`
	Description string `gorm:"type:text"`
}
