package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the status API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())

	router.GET("/health", handler.HealthCheck)
	router.GET("/status", handler.GetStatus)

	return router
}
