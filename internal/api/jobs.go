package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/feedpulse/feedpulse/internal/worker"
)

var jobClasses = map[string]worker.JobClass{
	"fetch":    worker.JobClassFetch,
	"classify": worker.JobClassClassify,
	"digest":   worker.JobClassDigest,
}

type startIngestionRequest struct {
	Cron string `json:"cron"`
}

// StartIngestionHandler activates the tenant's recurring pipeline. An
// optional cron expression in the body overrides the stored schedule.
func StartIngestionHandler(db *gorm.DB, manager *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		var req startIngestionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		if err := manager.StartIngestion(c.Request.Context(), tenant, req.Cron); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, worker.ErrInvalidCron) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant": tenant.Key(), "ingestion_active": true})
	}
}

// RunJobHandler enqueues a one-off run of a job class for the tenant,
// outside its recurring schedule.
func RunJobHandler(db *gorm.DB, manager *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		class, ok := jobClasses[c.Param("class")]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job class"})
			return
		}

		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		if err := manager.RunNow(class, tenant); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"tenant": tenant.Key(), "class": string(class)})
	}
}

// StopIngestionHandler deactivates the tenant's pipeline and terminates any
// queued or running jobs.
func StopIngestionHandler(db *gorm.DB, manager *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := lookupTenant(c, db)
		if tenant == nil {
			return
		}

		if err := manager.StopIngestion(c.Request.Context(), tenant); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant": tenant.Key(), "ingestion_active": false})
	}
}

// KillAllHandler sweeps every tenant's schedules and jobs.
func KillAllHandler(manager *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := manager.KillAll(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
	}
}
