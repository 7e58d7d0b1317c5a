package repository

import (
	"errors"
	"testing"

	"github.com/rpattn/salesingest/internal/domain"
)

func TestDecodeColumnMapping(t *testing.T) {
	mapping, err := DecodeColumnMapping([]byte(`{"order_id":"Order No","city":"Town","category":""}`))
	if err != nil {
		t.Fatalf("unexpected error decoding mapping: %v", err)
	}
	if len(mapping) != 2 {
		t.Fatalf("expected blank values to be dropped, got %v", mapping)
	}
	if mapping[domain.ColumnOrderID] != "Order No" || mapping[domain.ColumnCity] != "Town" {
		t.Fatalf("unexpected mapping: %v", mapping)
	}
}

func TestDecodeColumnMappingRejectsUnknownColumns(t *testing.T) {
	_, err := DecodeColumnMapping([]byte(`{"discount":"Disc"}`))
	if !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestDecodeColumnMappingRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodeColumnMapping([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for non-object payload")
	}
}
