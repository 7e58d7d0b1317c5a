package repository

import (
	"context"

	"github.com/rpattn/salesingest/internal/domain"

	"github.com/google/uuid"
)

// TenantRepository defines the interface for tenant operations
type TenantRepository interface {
	Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (domain.Tenant, error)
}

// UploadRepository persists upload metadata and its ingestion state.
type UploadRepository interface {
	Create(ctx context.Context, upload domain.Upload) (domain.Upload, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Upload, error)
	UpdateState(ctx context.Context, id uuid.UUID, state domain.UploadState, cleanedLocation string) error
}

// ColumnMappingRepository stores the single confirmed mapping of each tenant.
type ColumnMappingRepository interface {
	// Get returns domain.ErrMappingNotFound when the tenant has no mapping.
	Get(ctx context.Context, tenantID uuid.UUID) (domain.StoredColumnMapping, error)
	// Put replaces any prior mapping of the tenant.
	Put(ctx context.Context, tenantID uuid.UUID, mapping domain.ColumnMapping) error
}

// SalesRepository writes cleaned sales rows under the (tenant_id, order_id)
// uniqueness constraint.
type SalesRepository interface {
	// InsertBatch inserts every record in one transaction. Rows that collide
	// with an existing natural key are skipped and reported, not failed.
	InsertBatch(ctx context.Context, records []domain.SalesRecord) (SalesInsertResult, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// SalesInsertResult reports the outcome of a batch insert.
type SalesInsertResult struct {
	Inserted int
	Skipped  []string
}

// AuditRepository stores the tenant audit trail.
type AuditRepository interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, tenantID uuid.UUID, limit int, offset int) ([]domain.AuditEntry, error)
}
