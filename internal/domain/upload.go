package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadState tracks an upload through the ingestion state machine.
type UploadState string

const (
	UploadStateReceived        UploadState = "RECEIVED"
	UploadStateHeadersDetected UploadState = "HEADERS_DETECTED"
	UploadStateMappingReused   UploadState = "MAPPING_REUSED"
	UploadStateMappingPending  UploadState = "MAPPING_PENDING"
	UploadStateCleaned         UploadState = "CLEANED"
	UploadStateStored          UploadState = "STORED"
	UploadStateFailed          UploadState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s UploadState) Terminal() bool {
	return s == UploadStateStored || s == UploadStateFailed
}

// Upload is the metadata of one uploaded file.
type Upload struct {
	ID              uuid.UUID   `json:"id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	FileName        string      `json:"filename"`
	FileType        string      `json:"file_type"`
	RawKey          string      `json:"file_path"`
	CleanedLocation string      `json:"cleaned_file_path,omitempty"`
	State           UploadState `json:"state"`
	UploadedAt      time.Time   `json:"uploaded_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewUpload creates upload metadata in the RECEIVED state.
func NewUpload(tenantID uuid.UUID, fileName, fileType, rawKey string) Upload {
	now := time.Now().UTC()
	return Upload{
		ID:         uuid.New(),
		TenantID:   tenantID,
		FileName:   fileName,
		FileType:   fileType,
		RawKey:     rawKey,
		State:      UploadStateReceived,
		UploadedAt: now,
		UpdatedAt:  now,
	}
}
