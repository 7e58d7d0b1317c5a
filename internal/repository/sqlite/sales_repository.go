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

const insertSalesSQL = `INSERT INTO sales_data (
	tenant_id, file_id, order_id, order_date, product_id, quantity, unit_price, total_amount,
	payment_mode, product_name, category, sales_channel, state, city, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type salesRepository struct {
	db *sql.DB
}

// NewSalesRepository creates a sales repository on db.
func NewSalesRepository(db *sql.DB) repository.SalesRepository {
	return &salesRepository{db: db}
}

// InsertBatch inserts row by row inside one transaction. SQLite aborts only
// the failing statement on a constraint violation, so duplicates are skipped
// without losing earlier rows.
func (r *salesRepository) InsertBatch(ctx context.Context, records []domain.SalesRecord) (repository.SalesInsertResult, error) {
	result := repository.SalesInsertResult{}
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to open transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSalesSQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare sales insert: %w", err)
	}
	defer stmt.Close()

	createdAt := nowText()
	for _, rec := range records {
		err := insertSalesRow(ctx, stmt, rec, createdAt)
		switch {
		case err == nil:
			result.Inserted++
		case errors.Is(err, domain.ErrDuplicateKey):
			result.Skipped = append(result.Skipped, rec.OrderID)
		default:
			return repository.SalesInsertResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return repository.SalesInsertResult{}, fmt.Errorf("failed to commit sales batch: %w", err)
	}
	return result, nil
}

func insertSalesRow(ctx context.Context, stmt *sql.Stmt, rec domain.SalesRecord, createdAt string) error {
	_, err := stmt.ExecContext(
		ctx,
		rec.TenantID.String(),
		rec.UploadID.String(),
		rec.OrderID,
		formatTime(rec.OrderDate),
		rec.ProductID,
		rec.Quantity,
		rec.UnitPrice,
		rec.TotalAmount,
		rec.PaymentMode,
		rec.ProductName,
		rec.Category,
		rec.SalesChannel,
		rec.State,
		rec.City,
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sales row %s: %w", rec.OrderID, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert sales row %s: %w", rec.OrderID, err)
	}
	return nil
}

func (r *salesRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales_data WHERE tenant_id = ?`, tenantID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sales rows: %w", err)
	}
	return count, nil
}
