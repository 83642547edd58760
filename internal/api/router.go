package api

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/api/handlers"
)

// SetupRoutes registers the optimizer API on router. solveLimit runs in front
// of the optimize endpoint only.
func SetupRoutes(router *gin.Engine, optimization *handlers.OptimizationHandler, health *handlers.HealthHandler, solveLimit gin.HandlerFunc) {
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/optimize", solveLimit, optimization.Optimize)
		apiV1.POST("/validate", optimization.Validate)
		apiV1.GET("/dataset", optimization.GetDataset)
		apiV1.POST("/dataset/reload", optimization.ReloadDataset)
	}

	router.GET("/health", health.GetHealth)
	router.GET("/ready", health.GetReady)
}
