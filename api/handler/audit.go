package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageaudit/metrics"
	"github.com/use-agent/pageaudit/models"
)

// Auditor runs a single-page audit. Every error it returns is expected to
// be a *models.AuditError.
type Auditor interface {
	Run(ctx context.Context, rawURL string) (*models.AuditResult, error)
}

// Audit returns a handler for POST /audit.
//
// Malformed input is answered with 400 before any browser work. Every
// audit that reaches the browser is answered with 200, carrying either
// the result or a classified error message.
func Audit(auditor Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AuditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, models.MsgURLRequired)
			return
		}
		rawURL, ok := req.URL.(string)
		if !ok || rawURL == "" {
			badRequest(c, models.MsgURLRequired)
			return
		}

		result, err := auditor.Run(c.Request.Context(), rawURL)
		if err != nil {
			var ae *models.AuditError
			if !errors.As(err, &ae) {
				ae = models.NewAuditError(models.ErrCodeUnknown, models.MsgUnknown, err)
			}
			if ae.Code == models.ErrCodeInvalidInput {
				badRequest(c, ae.Message)
				return
			}
			metrics.RecordAudit(ae.Code, false, 0)
			c.JSON(http.StatusOK, models.AuditResponse{
				Success: false,
				Error:   ae.Message,
			})
			return
		}

		metrics.RecordAudit("success", true, result.LoadTime)
		c.JSON(http.StatusOK, models.AuditResponse{
			Success: true,
			Data:    result,
		})
	}
}

// MethodNotAllowed answers non-POST requests to /audit.
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.AuditResponse{
			Success: false,
			Error:   models.MsgMethodNotAllowed,
		})
	}
}

// NotFound answers every unmatched route.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.MsgNotFound})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.AuditResponse{
		Success: false,
		Error:   msg,
	})
}
