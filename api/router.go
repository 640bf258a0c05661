package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageaudit/api/handler"
	"github.com/use-agent/pageaudit/api/middleware"
	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger → SecurityHeaders → CORS
//	/audit:  Auth (if keys configured) → RateLimit
//
// Health and metrics stay outside auth so monitoring probes always work.
func NewRouter(auditor handler.Auditor, sessions handler.SessionCounter, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/health", handler.Health(sessions, startTime))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	audit := r.Group("/audit")
	audit.Use(middleware.Auth(cfg.Auth.APIKeys))
	audit.Use(middleware.RateLimit(cfg.RateLimit))

	audit.POST("", handler.Audit(auditor))

	// Any other method on /audit is 405; on every other path a method
	// mismatch stays a plain 404.
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		if c.Request.URL.Path == "/audit" {
			handler.MethodNotAllowed()(c)
			return
		}
		handler.NotFound()(c)
	})
	r.NoRoute(handler.NotFound())

	return r
}
