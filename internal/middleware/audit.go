package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Audit records requests that completed without error, such as document
// downloads that have no service call of their own to audit. The resource id
// comes from the named path parameter.
func Audit(recorder AuditRecorder, logger *zap.Logger, action, resource, idParam string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{Action: action, Resource: resource}
		if id := c.Param(idParam); id != "" {
			entry.ResourceID = &id
		}
		if actor := Actor(c); actor != "" {
			entry.Actor = &actor
		}
		entry.Payload, _ = json.Marshal(map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.GetHeader("User-Agent"),
		})

		if err := recorder.Create(c.Request.Context(), entry); err != nil {
			logger.Warn("request audit failed", zap.String("action", action), zap.Error(err))
		}
	}
}
