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

type uploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates an upload repository on db.
func NewUploadRepository(db *sql.DB) repository.UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, upload domain.Upload) (domain.Upload, error) {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO uploads (id, tenant_id, filename, file_type, file_path, cleaned_file_path, state, uploaded_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)`,
		upload.ID.String(),
		upload.TenantID.String(),
		upload.FileName,
		upload.FileType,
		upload.RawKey,
		upload.CleanedLocation,
		string(upload.State),
		formatTime(upload.UploadedAt),
		formatTime(upload.UpdatedAt),
	)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create upload: %w", err)
	}
	return upload, nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Upload, error) {
	var (
		upload                    domain.Upload
		rawID, rawTenant, state   string
		cleaned                   sql.NullString
		uploadedAt, updatedAtText string
	)
	err := r.db.QueryRowContext(
		ctx,
		`SELECT id, tenant_id, filename, file_type, file_path, cleaned_file_path, state, uploaded_at, updated_at
		 FROM uploads WHERE id = ?`,
		id.String(),
	).Scan(&rawID, &rawTenant, &upload.FileName, &upload.FileType, &upload.RawKey, &cleaned, &state, &uploadedAt, &updatedAtText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Upload{}, fmt.Errorf("failed to get upload %s: %w", id, domain.ErrUploadNotFound)
		}
		return domain.Upload{}, fmt.Errorf("failed to get upload: %w", err)
	}

	if upload.ID, err = uuid.Parse(rawID); err != nil {
		return domain.Upload{}, fmt.Errorf("failed to parse upload id: %w", err)
	}
	if upload.TenantID, err = uuid.Parse(rawTenant); err != nil {
		return domain.Upload{}, fmt.Errorf("failed to parse upload tenant id: %w", err)
	}
	if upload.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return domain.Upload{}, err
	}
	if upload.UpdatedAt, err = parseTime(updatedAtText); err != nil {
		return domain.Upload{}, err
	}
	upload.CleanedLocation = cleaned.String
	upload.State = domain.UploadState(state)
	return upload, nil
}

func (r *uploadRepository) UpdateState(ctx context.Context, id uuid.UUID, state domain.UploadState, cleanedLocation string) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE uploads
		 SET state = ?,
		     cleaned_file_path = COALESCE(NULLIF(?, ''), cleaned_file_path),
		     updated_at = ?
		 WHERE id = ?`,
		string(state),
		cleanedLocation,
		nowText(),
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update upload state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update upload %s: %w", id, domain.ErrUploadNotFound)
	}
	return nil
}
