package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/feedpulse/feedpulse/internal/metrics"
	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/store"
)

const maxPageSize = 100

// ListItemsHandler returns the tenant's content items, filtered by the query
// parameters and paginated.
func ListItemsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		filter := store.ContentFilter{
			TenantID:       tenant.ID,
			Channel:        c.Query("channel"),
			Category:       c.Query("category"),
			Product:        c.Query("product"),
			SentimentLabel: c.Query("sentiment"),
			Search:         c.Query("search"),
		}
		if v := c.Query("needs_processing"); v != "" {
			pending := v == "true"
			filter.NeedsProcessing = &pending
		}
		if v := c.Query("posted_after"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "posted_after must be RFC3339"})
				return
			}
			filter.PostedAfter = &t
		}
		if v := c.Query("posted_before"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "posted_before must be RFC3339"})
				return
			}
			filter.PostedBefore = &t
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit <= 0 || limit > maxPageSize {
			limit = maxPageSize
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		var total int64
		if err := filter.Apply(db.Model(&models.ContentItem{})).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count items"})
			return
		}

		var items []models.ContentItem
		if err := filter.Apply(db).
			Order("posted_at desc").
			Limit(limit).Offset(offset).
			Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list items"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
			"items":  items,
		})
	}
}

// GetMetricsHandler computes an on-demand window report for the tenant.
// The window comes from the "window" preset or an explicit "hours" count.
func GetMetricsHandler(db *gorm.DB, recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		preset := c.Query("window")
		hours, _ := strconv.Atoi(c.Query("hours"))

		report, err := recorder.Report(c.Request.Context(), tenant.ID, preset, hours, time.Now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
