package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/salesingest/internal/db"
	"github.com/rpattn/salesingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const insertSalesSQL = `INSERT INTO sales_data (
	tenant_id, file_id, order_id, order_date, product_id, quantity, unit_price, total_amount,
	payment_mode, product_name, category, sales_channel, state, city
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (tenant_id, order_id) DO NOTHING`

type salesRepository struct {
	conn *db.Connection
}

// NewSalesRepository wires a repository on the shared connection; batches
// run through Connection.WithTx.
func NewSalesRepository(conn *db.Connection) SalesRepository {
	return &salesRepository{conn: conn}
}

// InsertBatch queues every row in a single pgx batch inside one transaction.
// A row that hits the natural key constraint affects zero rows.
func (r *salesRepository) InsertBatch(ctx context.Context, records []domain.SalesRecord) (SalesInsertResult, error) {
	result := SalesInsertResult{}
	if len(records) == 0 {
		return result, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			insertSalesSQL,
			rec.TenantID,
			rec.UploadID,
			rec.OrderID,
			rec.OrderDate,
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
		)
	}

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, rec := range records {
			tag, execErr := br.Exec()
			if execErr != nil {
				_ = br.Close()
				return fmt.Errorf("failed to insert sales row %s: %w", rec.OrderID, execErr)
			}
			if tag.RowsAffected() == 0 {
				result.Skipped = append(result.Skipped, rec.OrderID)
				continue
			}
			result.Inserted++
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close sales batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return SalesInsertResult{}, err
	}
	return result, nil
}

func (r *salesRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.conn.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales_data WHERE tenant_id = $1`, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sales rows: %w", err)
	}
	return count, nil
}
