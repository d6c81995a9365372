package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

// writeAudit records an audit entry. Failures are logged and never surface to the caller.
func writeAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, actor, action, resource, resourceID string, payload map[string]interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			entry.Payload = raw
		}
	}
	if actor != "" {
		entry.Actor = &actor
	}
	if err := audit.Create(ctx, entry); err != nil {
		logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
