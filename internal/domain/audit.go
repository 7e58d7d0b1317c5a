package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types recorded by the ingestion pipeline.
const (
	AuditUploadProcessed = "UPLOAD_PROCESSED"
	AuditUploadFailed    = "UPLOAD_FAILED"
	AuditMappingSaved    = "MAPPING_SAVED"
)

// AuditEntry is one event in the tenant audit trail.
type AuditEntry struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	UploadID  *uuid.UUID `json:"upload_id,omitempty"`
	EventType string     `json:"event_type"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}
