package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rpattn/salesingest/internal/domain"
)

// CleanedHeaders is the column order of cleaned CSV artifacts.
var CleanedHeaders = []string{
	string(domain.ColumnOrderID),
	string(domain.ColumnOrderDate),
	string(domain.ColumnProductID),
	string(domain.ColumnQuantity),
	string(domain.ColumnUnitPrice),
	string(domain.ColumnTotalAmount),
	string(domain.ColumnPaymentMode),
	string(domain.ColumnProductName),
	string(domain.ColumnCategory),
	string(domain.ColumnSalesChannel),
	string(domain.ColumnState),
	string(domain.ColumnCity),
}

const cleanedDateLayout = "2006-01-02 15:04:05"

// WriteCSV encodes cleaned records with a header row. An empty slice still
// produces the header.
func WriteCSV(w io.Writer, records []domain.SalesRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CleanedHeaders); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.OrderID,
			rec.OrderDate.UTC().Format(cleanedDateLayout),
			rec.ProductID,
			formatFloat(rec.Quantity),
			formatFloat(rec.UnitPrice),
			formatFloat(rec.TotalAmount),
			rec.PaymentMode,
			rec.ProductName,
			rec.Category,
			rec.SalesChannel,
			rec.State,
			rec.City,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", rec.OrderID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
