package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nutritrack/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.POST("", handler.RegisterProduct)
			products.GET("/:id", handler.GetProduct)
			products.PUT("/:id", handler.UpdateProduct)
		}

		v1.GET("/scan/:barcode", handler.ScanBarcode)
		v1.POST("/resolve", handler.ResolveRecord)
		v1.GET("/catalog/search", handler.SearchCatalog)
		v1.GET("/audit/:runId", handler.AuditTrail)
	}

	return router
}
