package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/feedpulse/feedpulse/internal/config"
	"github.com/feedpulse/feedpulse/internal/health"
	"github.com/feedpulse/feedpulse/internal/metrics"
	"github.com/feedpulse/feedpulse/internal/worker"
)

// NewRouter builds the HTTP surface. The health endpoint is open; everything
// under /api requires the admin token.
func NewRouter(cfg *config.Config, db *gorm.DB, manager *worker.Manager, recorder *metrics.Recorder, logger *slog.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/health", gin.WrapF(health.Handler))

	apiGroup := r.Group("/api", AdminAuth(cfg.AdminToken))
	{
		apiGroup.POST("/tenants", CreateTenantHandler(db))

		tenants := apiGroup.Group("/tenants/:kind/:id")
		{
			tenants.GET("/status", GetStatusHandler(db))
			tenants.PATCH("/preferences", UpdatePreferencesHandler(db))

			tenants.GET("/channels", ListChannelsHandler(db))
			tenants.POST("/channels", CreateChannelHandler(db))
			tenants.DELETE("/channels/:name", DeleteChannelHandler(db))

			tenants.GET("/categories", ListCategoriesHandler(db))
			tenants.POST("/categories", CreateCategoryHandler(db))
			tenants.POST("/products", CreateProductHandler(db))

			tenants.GET("/buckets", ListBucketsHandler(db))
			tenants.POST("/buckets", CreateBucketHandler(db))

			tenants.GET("/items", ListItemsHandler(db))
			tenants.GET("/metrics", GetMetricsHandler(db, recorder))

			tenants.POST("/ingestion/start", StartIngestionHandler(db, manager))
			tenants.POST("/ingestion/stop", StopIngestionHandler(db, manager))
			tenants.POST("/jobs/:class/run", RunJobHandler(db, manager))
		}

		apiGroup.POST("/admin/jobs/kill-all", KillAllHandler(manager))
	}

	return r
}
