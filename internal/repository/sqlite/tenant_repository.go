package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/repository"

	"github.com/google/uuid"
)

type tenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a tenant repository on db.
func NewTenantRepository(db *sql.DB) repository.TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO tenants (id, name, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		tenant.ID.String(),
		tenant.Name,
		tenant.Active,
		formatTime(tenant.CreatedAt),
		formatTime(tenant.UpdatedAt),
	)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}
	return r.GetByID(ctx, tenant.ID)
}

func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	var (
		tenant             domain.Tenant
		rawID              string
		createdAt, updated string
	)
	err := r.db.QueryRowContext(
		ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = ?`,
		id.String(),
	).Scan(&rawID, &tenant.Name, &tenant.Active, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("failed to get tenant %s: %w", id, domain.ErrTenantNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}

	if tenant.ID, err = uuid.Parse(rawID); err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to parse tenant id: %w", err)
	}
	if tenant.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Tenant{}, err
	}
	if tenant.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}

func (r *tenantRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (domain.Tenant, error) {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE tenants SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		nowText(),
		id.String(),
	)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to update tenant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Tenant{}, fmt.Errorf("failed to update tenant %s: %w", id, domain.ErrTenantNotFound)
	}
	return r.GetByID(ctx, id)
}
