package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/repository"

	"github.com/google/uuid"
)

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates an audit repository on db.
func NewAuditRepository(db *sql.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, entry domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	var uploadID any
	if entry.UploadID != nil {
		uploadID = entry.UploadID.String()
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO audit_logs (id, tenant_id, upload_id, event_type, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		entry.TenantID.String(),
		uploadID,
		entry.EventType,
		entry.Message,
		nowText(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, tenantID uuid.UUID, limit int, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, tenant_id, upload_id, event_type, message, created_at
		 FROM audit_logs
		 WHERE tenant_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		tenantID.String(),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry                       domain.AuditEntry
			rawID, rawTenant, createdAt string
			uploadID                    sql.NullString
		)
		if err := rows.Scan(&rawID, &rawTenant, &uploadID, &entry.EventType, &entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if entry.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("failed to parse audit id: %w", err)
		}
		if entry.TenantID, err = uuid.Parse(rawTenant); err != nil {
			return nil, fmt.Errorf("failed to parse audit tenant id: %w", err)
		}
		if uploadID.Valid {
			id, err := uuid.Parse(uploadID.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse audit upload id: %w", err)
			}
			entry.UploadID = &id
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
