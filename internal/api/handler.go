package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qrqcrew/callsign-notes/internal/domain"
)

// Reporter exposes the latest sync pass outcome
type Reporter interface {
	LastReport() *domain.PassReport
}

// Handler handles status API requests
type Handler struct {
	reporter Reporter
}

// NewHandler creates a new status API handler
func NewHandler(reporter Reporter) *Handler {
	return &Handler{
		reporter: reporter,
	}
}

// HealthCheck returns the health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GetStatus returns the latest sync pass report
// GET /status
func (h *Handler) GetStatus(c *gin.Context) {
	report := h.reporter.LastReport()
	if report == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "no sync pass completed yet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": report,
	})
}
