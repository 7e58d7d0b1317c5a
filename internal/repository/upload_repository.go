package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type uploadRepository struct {
	pool *pgxpool.Pool
}

// NewUploadRepository wires a repository backed by pgxpool.
func NewUploadRepository(pool *pgxpool.Pool) UploadRepository {
	return &uploadRepository{pool: pool}
}

func (r *uploadRepository) Create(ctx context.Context, upload domain.Upload) (domain.Upload, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO uploads (id, tenant_id, filename, file_type, file_path, cleaned_file_path, state, uploaded_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		upload.ID,
		upload.TenantID,
		upload.FileName,
		upload.FileType,
		upload.RawKey,
		upload.CleanedLocation,
		string(upload.State),
		upload.UploadedAt,
		upload.UpdatedAt,
	)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create upload: %w", err)
	}
	return upload, nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Upload, error) {
	var (
		upload  domain.Upload
		cleaned pgtype.Text
		state   string
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, filename, file_type, file_path, cleaned_file_path, state, uploaded_at, updated_at
		 FROM uploads WHERE id = $1`,
		id,
	).Scan(
		&upload.ID,
		&upload.TenantID,
		&upload.FileName,
		&upload.FileType,
		&upload.RawKey,
		&cleaned,
		&state,
		&upload.UploadedAt,
		&upload.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Upload{}, fmt.Errorf("failed to get upload %s: %w", id, domain.ErrUploadNotFound)
		}
		return domain.Upload{}, fmt.Errorf("failed to get upload: %w", err)
	}
	upload.CleanedLocation = cleaned.String
	upload.State = domain.UploadState(state)
	return upload, nil
}

// UpdateState moves an upload to state. An empty cleanedLocation keeps the
// stored one.
func (r *uploadRepository) UpdateState(ctx context.Context, id uuid.UUID, state domain.UploadState, cleanedLocation string) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE uploads
		 SET state = $2,
		     cleaned_file_path = COALESCE(NULLIF($3, ''), cleaned_file_path),
		     updated_at = NOW()
		 WHERE id = $1`,
		id,
		string(state),
		cleanedLocation,
	)
	if err != nil {
		return fmt.Errorf("failed to update upload state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update upload %s: %w", id, domain.ErrUploadNotFound)
	}
	return nil
}
