package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

// AuditRepository appends audit trail entries.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit log, assigning id and timestamp when missing.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return fmt.Errorf("audit payload is nil")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if len(log.Payload) == 0 {
		log.Payload = []byte(`{}`)
	}
	const query = `INSERT INTO audit_logs (id, actor, action, resource, resource_id, payload, created_at)
VALUES (:id, :actor, :action, :resource, :resource_id, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
