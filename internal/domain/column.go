package domain

import "fmt"

// Column is a logical column of the sales schema, independent of how any
// particular upload spells its headers.
type Column string

const (
	ColumnOrderID     Column = "order_id"
	ColumnOrderDate   Column = "order_date"
	ColumnProductID   Column = "product_id"
	ColumnQuantity    Column = "quantity"
	ColumnUnitPrice   Column = "unit_price"
	ColumnPaymentMode Column = "payment_mode"

	ColumnProductName  Column = "product_name"
	ColumnCategory     Column = "category"
	ColumnSalesChannel Column = "sales_channel"
	ColumnState        Column = "state"
	ColumnCity         Column = "city"

	// ColumnTotalAmount is never required and has no aliases; it only feeds
	// numeric recovery when the upload carries it.
	ColumnTotalAmount Column = "total_amount"
)

// UnknownValue replaces missing optional text.
const UnknownValue = "Unknown"

var (
	requiredColumns = []Column{
		ColumnOrderID,
		ColumnOrderDate,
		ColumnProductID,
		ColumnQuantity,
		ColumnUnitPrice,
		ColumnPaymentMode,
	}

	optionalColumns = []Column{
		ColumnProductName,
		ColumnCategory,
		ColumnSalesChannel,
		ColumnState,
		ColumnCity,
	}
)

// RequiredColumns returns the columns a caller must map explicitly, in schema order.
func RequiredColumns() []Column {
	return append([]Column(nil), requiredColumns...)
}

// OptionalColumns returns the alias-resolvable columns, in schema order.
func OptionalColumns() []Column {
	return append([]Column(nil), optionalColumns...)
}

// IsRequired reports whether c belongs to the required set.
func (c Column) IsRequired() bool {
	for _, col := range requiredColumns {
		if col == c {
			return true
		}
	}
	return false
}

// IsOptional reports whether c belongs to the optional set.
func (c Column) IsOptional() bool {
	for _, col := range optionalColumns {
		if col == c {
			return true
		}
	}
	return false
}

// ParseColumn converts a logical column name received from a caller.
func ParseColumn(name string) (Column, error) {
	col := Column(name)
	if col.IsRequired() || col.IsOptional() || col == ColumnTotalAmount {
		return col, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}
