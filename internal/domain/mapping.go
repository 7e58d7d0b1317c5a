package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ColumnMapping maps logical columns to the actual header names of one upload.
type ColumnMapping map[Column]string

// ParseColumnMapping converts a loosely typed logical->actual map, rejecting
// unknown logical names. Blank actual values are dropped.
func ParseColumnMapping(raw map[string]string) (ColumnMapping, error) {
	mapping := make(ColumnMapping, len(raw))
	for name, actual := range raw {
		col, err := ParseColumn(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(actual) == "" {
			continue
		}
		mapping[col] = actual
	}
	return mapping, nil
}

// Clone returns an independent copy of the mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ActualColumns lists the header names referenced by the mapping, in schema order.
func (m ColumnMapping) ActualColumns() []string {
	actuals := make([]string, 0, len(m))
	for _, col := range m.Columns() {
		actuals = append(actuals, m[col])
	}
	return actuals
}

// MissingRequired lists required columns that are absent or blank.
func (m ColumnMapping) MissingRequired() []Column {
	var missing []Column
	for _, col := range requiredColumns {
		if strings.TrimSpace(m[col]) == "" {
			missing = append(missing, col)
		}
	}
	return missing
}

// Strings returns the mapping keyed by plain strings, for JSON payloads.
func (m ColumnMapping) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// Columns lists the mapped logical columns in schema order.
func (m ColumnMapping) Columns() []Column {
	ordered := make([]Column, 0, len(m))
	for _, col := range requiredColumns {
		if _, ok := m[col]; ok {
			ordered = append(ordered, col)
		}
	}
	for _, col := range optionalColumns {
		if _, ok := m[col]; ok {
			ordered = append(ordered, col)
		}
	}
	if _, ok := m[ColumnTotalAmount]; ok {
		ordered = append(ordered, ColumnTotalAmount)
	}
	return ordered
}

// StoredColumnMapping is the single persisted mapping of a tenant.
type StoredColumnMapping struct {
	ID        uuid.UUID     `json:"id"`
	TenantID  uuid.UUID     `json:"tenant_id"`
	Mapping   ColumnMapping `json:"mapping_json"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
