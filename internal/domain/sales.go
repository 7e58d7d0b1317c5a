package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawTable is an upload as read from its source: header order plus rows keyed
// by actual header. Missing cells are empty strings.
type RawTable struct {
	Headers []string
	Rows    []map[string]string
}

// HasHeader reports whether the table carries the exact header name.
func (t RawTable) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// SalesRecord is one cleaned and validated transaction.
type SalesRecord struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	UploadID     uuid.UUID `json:"file_id"`
	OrderID      string    `json:"order_id"`
	OrderDate    time.Time `json:"order_date"`
	ProductID    string    `json:"product_id"`
	Quantity     float64   `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	TotalAmount  float64   `json:"total_amount"`
	PaymentMode  string    `json:"payment_mode"`
	ProductName  string    `json:"product_name"`
	Category     string    `json:"category"`
	SalesChannel string    `json:"sales_channel"`
	State        string    `json:"state"`
	City         string    `json:"city"`
}

// IngestionStats summarizes one ingestion run.
type IngestionStats struct {
	RowsBefore                   int    `json:"rows_before"`
	RowsAfter                    int    `json:"rows_after"`
	DuplicatesRemoved            int    `json:"duplicates_removed"`
	InvalidRowsRemoved           int    `json:"invalid_rows_removed"`
	NewRowsInserted              int    `json:"new_rows_inserted"`
	CrossUploadDuplicatesSkipped int    `json:"cross_upload_duplicates_skipped"`
	CleanedFilePath              string `json:"cleaned_csv_path,omitempty"`
}
