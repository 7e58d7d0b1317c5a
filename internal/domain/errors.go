package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateKey marks a sales row whose (tenant_id, order_id) already exists.
	ErrDuplicateKey = errors.New("duplicate natural key")
	// ErrUnknownColumn is returned for logical column names outside the schema.
	ErrUnknownColumn = errors.New("unknown logical column")

	ErrMappingNotFound = errors.New("column mapping not found")
	ErrUploadNotFound  = errors.New("upload not found")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantInactive  = errors.New("tenant is suspended")
	// ErrUploadFinished is returned when a mapping is submitted for an upload
	// that already reached STORED or FAILED.
	ErrUploadFinished = errors.New("upload already processed")
	// ErrUploadTenantMismatch is returned when an upload is resumed by another tenant.
	ErrUploadTenantMismatch = errors.New("upload belongs to another tenant")
)

// UnreadableSourceError reports a source that cannot be decoded as a table.
type UnreadableSourceError struct {
	Reason string
	Err    error
}

func (e *UnreadableSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable source: %s: %v", e.Reason, e.Err)
	}
	return "unreadable source: " + e.Reason
}

func (e *UnreadableSourceError) Unwrap() error { return e.Err }

// IncompleteMappingError lists the required columns a caller failed to map.
type IncompleteMappingError struct {
	Missing []Column
}

func (e *IncompleteMappingError) Error() string {
	return "required columns must be mapped: " + joinColumns(e.Missing)
}

// MissingColumnsError reports required columns whose mapped header is absent
// from the uploaded table.
type MissingColumnsError struct {
	Columns []Column
}

func (e *MissingColumnsError) Error() string {
	return "mapped columns not found in upload: " + joinColumns(e.Columns)
}

func joinColumns(cols []Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
