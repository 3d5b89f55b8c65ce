package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feedpulse/feedpulse/internal/models"
)

type createChannelRequest struct {
	Name     string   `json:"name" binding:"required"`
	Keywords []string `json:"keywords"`
}

// CreateChannelHandler adds a watched channel for the tenant.
func CreateChannelHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var req createChannelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		channel := models.WatchedChannel{
			TenantID: tenant.ID,
			Name:     req.Name,
			Keywords: datatypes.JSONSlice[string](req.Keywords),
		}
		if err := db.Where("tenant_id = ? AND name = ?", tenant.ID, req.Name).
			FirstOrCreate(&channel).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create channel"})
			return
		}

		c.JSON(http.StatusCreated, channel)
	}
}

// ListChannelsHandler returns the tenant's watched channels.
func ListChannelsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var channels []models.WatchedChannel
		if err := db.Where("tenant_id = ?", tenant.ID).Order("name").Find(&channels).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channels"})
			return
		}
		c.JSON(http.StatusOK, channels)
	}
}

// DeleteChannelHandler removes a watched channel. Already-ingested content
// stays; only future fetches stop covering the channel.
func DeleteChannelHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		result := db.Where("tenant_id = ? AND name = ?", tenant.ID, c.Param("name")).
			Delete(&models.WatchedChannel{})
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete channel"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type createNamedRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateCategoryHandler adds a feedback category the classifier can assign.
func CreateCategoryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var req createNamedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		category := models.FeedbackCategory{
			TenantID:    tenant.ID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := db.Where("tenant_id = ? AND name = ?", tenant.ID, req.Name).
			FirstOrCreate(&category).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create category"})
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

// ListCategoriesHandler returns the tenant's feedback and product categories.
func ListCategoriesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var categories []models.FeedbackCategory
		if err := db.Where("tenant_id = ?", tenant.ID).Order("name").Find(&categories).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list categories"})
			return
		}
		var products []models.ProductCategory
		if err := db.Where("tenant_id = ?", tenant.ID).Order("name").Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories, "products": products})
	}
}

// CreateProductHandler adds a product/area category.
func CreateProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var req createNamedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		product := models.ProductCategory{
			TenantID:    tenant.ID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := db.Where("tenant_id = ? AND name = ?", tenant.ID, req.Name).
			FirstOrCreate(&product).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// CreateBucketHandler adds a bucket AI suggestions can land in.
func CreateBucketHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var req createNamedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		bucket := models.Bucket{
			TenantID:    tenant.ID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := db.Where("tenant_id = ? AND name = ?", tenant.ID, req.Name).
			FirstOrCreate(&bucket).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bucket"})
			return
		}
		c.JSON(http.StatusCreated, bucket)
	}
}

// ListBucketsHandler returns the tenant's buckets with item counts.
func ListBucketsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var buckets []models.Bucket
		if err := db.Where("tenant_id = ?", tenant.ID).Order("name").Find(&buckets).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list buckets"})
			return
		}

		out := make([]gin.H, 0, len(buckets))
		for i := range buckets {
			var count int64
			if err := db.Model(&models.BucketItem{}).Where("bucket_id = ?", buckets[i].ID).Count(&count).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count bucket items"})
				return
			}
			out = append(out, gin.H{
				"id":          buckets[i].ID,
				"name":        buckets[i].Name,
				"description": buckets[i].Description,
				"item_count":  count,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}
