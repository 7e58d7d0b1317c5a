// Package cleaning turns a raw upload into validated sales records.
package cleaning

import (
	"strings"
	"time"

	"github.com/rpattn/salesingest/internal/domain"
)

// Transformer runs the cleaning pipeline. The zero value is not usable; build
// one with NewTransformer.
type Transformer struct {
	now func() time.Time
}

type Option func(*Transformer)

// WithClock overrides the processing time used to reject future order dates.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result holds the surviving records in source order and the run statistics.
// NewRowsInserted and CleanedFilePath are left for the store to fill in.
type Result struct {
	Records []domain.SalesRecord
	Stats   domain.IngestionStats
}

type optionalFloat struct {
	value float64
	valid bool
}

type row struct {
	orderID string
	fields  map[domain.Column]string

	orderDate time.Time
	dateValid bool
	quantity  optionalFloat
	unitPrice optionalFloat
	total     optionalFloat
}

// Clean applies, in order: rename, order id normalization, optional column
// defaulting, order id filtering, in-file deduplication, coercion, numeric
// recovery, string defaulting and validation. Row-level failures only affect
// the statistics; errors are returned for structural problems.
func (t *Transformer) Clean(table domain.RawTable, m domain.ColumnMapping) (Result, error) {
	if missing := m.MissingRequired(); len(missing) > 0 {
		return Result{}, &domain.IncompleteMappingError{Missing: missing}
	}

	projection, err := project(table, m)
	if err != nil {
		return Result{}, err
	}

	stats := domain.IngestionStats{RowsBefore: len(table.Rows)}

	rows := make([]*row, 0, len(table.Rows))
	for _, raw := range table.Rows {
		r := &row{fields: make(map[domain.Column]string, len(projection))}
		// Columns absent from the projection stay absent, which reads as
		// null for the optional ones.
		for col, actual := range projection {
			r.fields[col] = raw[actual]
		}
		r.orderID = normalizeOrderID(r.fields[domain.ColumnOrderID])
		if r.orderID == "" {
			continue
		}
		rows = append(rows, r)
	}

	seen := make(map[string]struct{}, len(rows))
	unique := rows[:0]
	for _, r := range rows {
		if _, dup := seen[r.orderID]; dup {
			stats.DuplicatesRemoved++
			continue
		}
		seen[r.orderID] = struct{}{}
		unique = append(unique, r)
	}
	rows = unique

	for _, r := range rows {
		coerce(r)
		recoverNumeric(r)
		defaultText(r)
	}

	now := t.now().UTC()
	records := make([]domain.SalesRecord, 0, len(rows))
	for _, r := range rows {
		rec, ok := validate(r, now)
		if !ok {
			stats.InvalidRowsRemoved++
			continue
		}
		records = append(records, rec)
	}
	stats.RowsAfter = len(records)

	return Result{Records: records, Stats: stats}, nil
}

// project resolves the source header of every logical column. Required
// columns whose header is absent fail the run; optional ones are dropped.
// An unmapped total_amount falls back to a header of that exact name.
func project(table domain.RawTable, m domain.ColumnMapping) (map[domain.Column]string, error) {
	projection := make(map[domain.Column]string, len(m)+1)
	var missing []domain.Column
	for _, col := range m.Columns() {
		actual := m[col]
		if !table.HasHeader(actual) {
			if col.IsRequired() {
				missing = append(missing, col)
			}
			continue
		}
		projection[col] = actual
	}
	if len(missing) > 0 {
		return nil, &domain.MissingColumnsError{Columns: missing}
	}
	if _, ok := projection[domain.ColumnTotalAmount]; !ok && table.HasHeader(string(domain.ColumnTotalAmount)) {
		projection[domain.ColumnTotalAmount] = string(domain.ColumnTotalAmount)
	}
	return projection, nil
}

func normalizeOrderID(raw string) string {
	id := strings.TrimSpace(raw)
	return strings.TrimSuffix(id, ".0")
}

func coerce(r *row) {
	if v, ok := parsePrice(r.fields[domain.ColumnUnitPrice]); ok {
		r.unitPrice = optionalFloat{value: v, valid: true}
	}
	if v, ok := parseNumber(r.fields[domain.ColumnQuantity]); ok {
		r.quantity = optionalFloat{value: v, valid: true}
	}
	if v, ok := parseNumber(r.fields[domain.ColumnTotalAmount]); ok {
		r.total = optionalFloat{value: v, valid: true}
	}
	r.orderDate, r.dateValid = parseOrderDate(r.fields[domain.ColumnOrderDate])
}

func recoverNumeric(r *row) {
	if !r.quantity.valid && r.unitPrice.valid && r.total.valid && r.unitPrice.value > 0 {
		r.quantity = optionalFloat{value: r.total.value / r.unitPrice.value, valid: true}
	}
	if !r.unitPrice.valid && r.quantity.valid && r.total.valid && r.quantity.value != 0 {
		r.unitPrice = optionalFloat{value: r.total.value / r.quantity.value, valid: true}
	}
	if r.quantity.valid && r.unitPrice.valid {
		r.total = optionalFloat{value: r.quantity.value * r.unitPrice.value, valid: true}
	}
}

var textColumns = []domain.Column{
	domain.ColumnPaymentMode,
	domain.ColumnProductName,
	domain.ColumnCategory,
	domain.ColumnSalesChannel,
	domain.ColumnState,
	domain.ColumnCity,
}

// defaultText fills blank text columns. Whitespace-only values count as blank.
func defaultText(r *row) {
	for _, col := range textColumns {
		value := strings.TrimSpace(r.fields[col])
		if value == "" {
			value = domain.UnknownValue
		}
		r.fields[col] = value
	}
}

func validate(r *row, now time.Time) (domain.SalesRecord, bool) {
	productID := strings.TrimSpace(r.fields[domain.ColumnProductID])
	switch {
	case !r.quantity.valid || r.quantity.value <= 0:
		return domain.SalesRecord{}, false
	case !r.unitPrice.valid || r.unitPrice.value <= 0:
		return domain.SalesRecord{}, false
	case !r.dateValid || r.orderDate.After(now):
		return domain.SalesRecord{}, false
	case productID == "":
		return domain.SalesRecord{}, false
	}

	return domain.SalesRecord{
		OrderID:      r.orderID,
		OrderDate:    r.orderDate,
		ProductID:    productID,
		Quantity:     r.quantity.value,
		UnitPrice:    r.unitPrice.value,
		TotalAmount:  r.total.value,
		PaymentMode:  r.fields[domain.ColumnPaymentMode],
		ProductName:  r.fields[domain.ColumnProductName],
		Category:     r.fields[domain.ColumnCategory],
		SalesChannel: r.fields[domain.ColumnSalesChannel],
		State:        r.fields[domain.ColumnState],
		City:         r.fields[domain.ColumnCity],
	}, true
}
