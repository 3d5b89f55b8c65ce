package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WatchedChannel is an external content source being monitored for a tenant,
// e.g. a subreddit. With keywords set, ingestion runs a filtered search;
// without, it pulls the most recent items.
type WatchedChannel struct {
	gorm.Model
	TenantID uint                        `gorm:"not null;uniqueIndex:idx_channels_tenant_name,where:deleted_at IS NULL"`
	Name     string                      `gorm:"not null;uniqueIndex:idx_channels_tenant_name,where:deleted_at IS NULL"`
	Keywords datatypes.JSONSlice[string]
}

// Query joins the channel's keywords into the search query string, or returns
// "" when the channel has no keyword filter.
func (c *WatchedChannel) Query() string {
	query := ""
	for i, kw := range c.Keywords {
		if i > 0 {
			query += " OR "
		}
		query += kw
	}
	return query
}
