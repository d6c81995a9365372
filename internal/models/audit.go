package models

import "time"

// Audit actions recorded by the orchestration layer.
const (
	AuditActionQRIssue      = "QR_ISSUE"
	AuditActionQRRegenerate = "QR_REGENERATE"
	AuditActionQRScan       = "QR_SCAN"
	AuditActionExport       = "DOCUMENT_EXPORT"
	AuditActionIntake       = "SHIPMENT_INTAKE"
	AuditActionArticleDrop  = "ARTICLE_DELETE"
	AuditActionCorrect      = "SHIPMENT_CORRECT"
	AuditActionDownload     = "DOCUMENT_DOWNLOAD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Actor      *string   `db:"actor" json:"actor,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
