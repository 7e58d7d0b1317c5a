package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/repository"

	"github.com/google/uuid"
)

type columnMappingRepository struct {
	db *sql.DB
}

// NewColumnMappingRepository creates a mapping repository on db.
func NewColumnMappingRepository(db *sql.DB) repository.ColumnMappingRepository {
	return &columnMappingRepository{db: db}
}

func (r *columnMappingRepository) Get(ctx context.Context, tenantID uuid.UUID) (domain.StoredColumnMapping, error) {
	var (
		stored                     domain.StoredColumnMapping
		rawID, rawTenant, payload  string
		createdAt, updatedAtString string
	)
	err := r.db.QueryRowContext(
		ctx,
		`SELECT id, tenant_id, mapping_json, created_at, updated_at FROM column_mappings WHERE tenant_id = ?`,
		tenantID.String(),
	).Scan(&rawID, &rawTenant, &payload, &createdAt, &updatedAtString)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredColumnMapping{}, domain.ErrMappingNotFound
		}
		return domain.StoredColumnMapping{}, fmt.Errorf("failed to get column mapping: %w", err)
	}

	if stored.ID, err = uuid.Parse(rawID); err != nil {
		return domain.StoredColumnMapping{}, fmt.Errorf("failed to parse mapping id: %w", err)
	}
	if stored.TenantID, err = uuid.Parse(rawTenant); err != nil {
		return domain.StoredColumnMapping{}, fmt.Errorf("failed to parse mapping tenant id: %w", err)
	}
	if stored.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.StoredColumnMapping{}, err
	}
	if stored.UpdatedAt, err = parseTime(updatedAtString); err != nil {
		return domain.StoredColumnMapping{}, err
	}
	if stored.Mapping, err = repository.DecodeColumnMapping([]byte(payload)); err != nil {
		return domain.StoredColumnMapping{}, err
	}
	return stored, nil
}

func (r *columnMappingRepository) Put(ctx context.Context, tenantID uuid.UUID, mapping domain.ColumnMapping) error {
	payload, err := json.Marshal(mapping.Strings())
	if err != nil {
		return fmt.Errorf("failed to encode column mapping: %w", err)
	}

	now := nowText()
	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO column_mappings (id, tenant_id, mapping_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET mapping_json = excluded.mapping_json, updated_at = excluded.updated_at`,
		uuid.New().String(),
		tenantID.String(),
		string(payload),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save column mapping: %w", err)
	}
	return nil
}
