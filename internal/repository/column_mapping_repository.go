package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type columnMappingRepository struct {
	pool *pgxpool.Pool
}

// NewColumnMappingRepository wires a repository backed by pgxpool.
func NewColumnMappingRepository(pool *pgxpool.Pool) ColumnMappingRepository {
	return &columnMappingRepository{pool: pool}
}

func (r *columnMappingRepository) Get(ctx context.Context, tenantID uuid.UUID) (domain.StoredColumnMapping, error) {
	var (
		stored  domain.StoredColumnMapping
		payload []byte
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, mapping_json, created_at, updated_at
		 FROM column_mappings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&stored.ID, &stored.TenantID, &payload, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredColumnMapping{}, domain.ErrMappingNotFound
		}
		return domain.StoredColumnMapping{}, fmt.Errorf("failed to get column mapping: %w", err)
	}

	mapping, err := DecodeColumnMapping(payload)
	if err != nil {
		return domain.StoredColumnMapping{}, err
	}
	stored.Mapping = mapping
	return stored, nil
}

func (r *columnMappingRepository) Put(ctx context.Context, tenantID uuid.UUID, mapping domain.ColumnMapping) error {
	payload, err := json.Marshal(mapping.Strings())
	if err != nil {
		return fmt.Errorf("failed to encode column mapping: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO column_mappings (id, tenant_id, mapping_json)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET mapping_json = EXCLUDED.mapping_json, updated_at = NOW()`,
		uuid.New(),
		tenantID,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save column mapping: %w", err)
	}
	return nil
}

// DecodeColumnMapping parses a persisted mapping_json document.
func DecodeColumnMapping(payload []byte) (domain.ColumnMapping, error) {
	raw := map[string]string{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode column mapping: %w", err)
	}
	mapping, err := domain.ParseColumnMapping(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode column mapping: %w", err)
	}
	return mapping, nil
}
