// Package api exposes the admin HTTP surface: tenant onboarding, watched
// channels, categories, buckets, content queries, metrics and job lifecycle.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feedpulse/feedpulse/internal/database"
	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/store"
)

// lookupTenant resolves the :kind/:id path parameters to a tenant row. It
// writes the error response itself and returns nil when the caller should
// stop.
func lookupTenant(c *gin.Context, db *gorm.DB) *models.Tenant {
	kind := c.Param("kind")
	subject := c.Param("id")

	var tenant models.Tenant
	var err error
	switch kind {
	case models.TenantKindUser:
		err = db.Where("user_id = ?", subject).First(&tenant).Error
	case models.TenantKindOrg:
		err = db.Where("org_id = ?", subject).First(&tenant).Error
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant kind must be user or org"})
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return nil
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant"})
		return nil
	}
	return &tenant
}

// loadPreferences fetches the tenant's preferences, creating defaults if the
// row is missing.
func loadPreferences(db *gorm.DB, tenantID uint) (*models.Preferences, error) {
	var prefs models.Preferences
	err := db.Where("tenant_id = ?", tenantID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prefs = models.Preferences{TenantID: tenantID}
		if err := db.Create(&prefs).Error; err != nil {
			return nil, err
		}
		return &prefs, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

type createTenantRequest struct {
	Kind      string `json:"kind" binding:"required"`
	SubjectID string `json:"subject_id" binding:"required"`
	Name      string `json:"name"`
}

// CreateTenantHandler onboards a tenant: the tenant row, default preferences
// and the starter category pack, all in one transaction. Re-posting an
// existing identity returns the existing tenant.
func CreateTenantHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tenant := models.Tenant{Name: req.Name}
		switch req.Kind {
		case models.TenantKindUser:
			tenant.UserID = &req.SubjectID
		case models.TenantKindOrg:
			tenant.OrgID = &req.SubjectID
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be user or org"})
			return
		}

		var existing models.Tenant
		query := db.Where("user_id = ?", req.SubjectID)
		if req.Kind == models.TenantKindOrg {
			query = db.Where("org_id = ?", req.SubjectID)
		}
		if err := query.First(&existing).Error; err == nil {
			c.JSON(http.StatusOK, tenantResponse(&existing))
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&tenant).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.Preferences{TenantID: tenant.ID}).Error; err != nil {
				return err
			}
			return database.ApplyStarterPack(tx, tenant.ID)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tenant"})
			return
		}

		c.JSON(http.StatusCreated, tenantResponse(&tenant))
	}
}

func tenantResponse(t *models.Tenant) gin.H {
	return gin.H{
		"id":         t.ID,
		"kind":       t.Kind(),
		"subject_id": t.SubjectID(),
		"name":       t.Name,
	}
}

// GetStatusHandler reports the tenant's pipeline state: ingestion and
// categorization flags, schedule, backlog size and last notification time.
func GetStatusHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		prefs, err := loadPreferences(db, tenant.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
			return
		}

		pending, err := store.CountPending(db, tenant.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count pending items"})
			return
		}

		var total int64
		if err := db.Model(&models.ContentItem{}).Where("tenant_id = ?", tenant.ID).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count items"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"tenant":                 tenantResponse(tenant),
			"ingestion_active":       prefs.IngestionActive,
			"ingestion_cron":         prefs.IngestionCron,
			"trigger_categorization": prefs.TriggerCategorization,
			"notifications_enabled":  prefs.NotificationsEnabled,
			"last_notified":          prefs.LastNotified,
			"pending_items":          pending,
			"total_items":            total,
		})
	}
}

type updatePreferencesRequest struct {
	IngestionCron          *string   `json:"ingestion_cron"`
	TriggerCategorization  *bool     `json:"trigger_categorization"`
	Recipients             *[]string `json:"recipients"`
	IssueThreshold         *int      `json:"issue_threshold"`
	VolumeMultiplier       *float64  `json:"volume_multiplier"`
	SentimentThreshold     *float64  `json:"sentiment_threshold"`
	CommentGrowthThreshold *int      `json:"comment_growth_threshold"`
	WindowHours            *int      `json:"window_hours"`
}

// UpdatePreferencesHandler patches the tenant's preferences. Only fields
// present in the body change; clearing recipients disables notifications via
// the model hook.
func UpdatePreferencesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var req updatePreferencesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		prefs, err := loadPreferences(db, tenant.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
			return
		}

		if req.IngestionCron != nil {
			prefs.IngestionCron = *req.IngestionCron
		}
		if req.TriggerCategorization != nil {
			prefs.TriggerCategorization = *req.TriggerCategorization
		}
		if req.Recipients != nil {
			prefs.Recipients = datatypes.JSONSlice[string](*req.Recipients)
		}
		if req.IssueThreshold != nil {
			prefs.IssueThreshold = *req.IssueThreshold
		}
		if req.VolumeMultiplier != nil {
			prefs.VolumeMultiplier = *req.VolumeMultiplier
		}
		if req.SentimentThreshold != nil {
			prefs.SentimentThreshold = *req.SentimentThreshold
		}
		if req.CommentGrowthThreshold != nil {
			prefs.CommentGrowthThreshold = *req.CommentGrowthThreshold
		}
		if req.WindowHours != nil {
			prefs.WindowHours = *req.WindowHours
		}

		if err := db.Save(prefs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save preferences"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ingestion_cron":           prefs.IngestionCron,
			"trigger_categorization":   prefs.TriggerCategorization,
			"notifications_enabled":    prefs.NotificationsEnabled,
			"recipients":               prefs.Recipients,
			"issue_threshold":          prefs.IssueThreshold,
			"volume_multiplier":        prefs.VolumeMultiplier,
			"sentiment_threshold":      prefs.SentimentThreshold,
			"comment_growth_threshold": prefs.CommentGrowthThreshold,
			"window_hours":             prefs.WindowHours,
		})
	}
}
