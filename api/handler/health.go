package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageaudit/models"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "puppeteer-audit-api"

// SessionCounter reports the number of open page sessions.
type SessionCounter interface {
	ActiveSessions() int
}

// Health returns a handler for GET /health.
func Health(sessions SessionCounter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         "healthy",
			Service:        ServiceName,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSessions: sessions.ActiveSessions(),
		})
	}
}
