package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tenantRepository implements TenantRepository interface
type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

// Create creates a new tenant
func (r *tenantRepository) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO tenants (id, name, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, name, is_active, created_at, updated_at`,
		tenant.ID,
		tenant.Name,
		tenant.Active,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	created, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}
	return created, nil
}

// GetByID retrieves a tenant by ID
func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1`,
		id,
	)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("failed to get tenant %s: %w", id, domain.ErrTenantNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// SetActive flips the upload gate of a tenant
func (r *tenantRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (domain.Tenant, error) {
	row := r.pool.QueryRow(
		ctx,
		`UPDATE tenants SET is_active = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, name, is_active, created_at, updated_at`,
		id,
		active,
	)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("failed to update tenant %s: %w", id, domain.ErrTenantNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var tenant domain.Tenant
	if err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Active, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}
