package ingestion

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/repository"
	"github.com/rpattn/salesingest/internal/storage"
	"github.com/rpattn/salesingest/internal/tabular"

	"github.com/google/uuid"
)

// Store persists the cleaned output of a run.
type Store struct {
	sales     repository.SalesRepository
	artifacts storage.ArtifactStore
}

// NewStore creates an ingestion store.
func NewStore(sales repository.SalesRepository, artifacts storage.ArtifactStore) *Store {
	return &Store{sales: sales, artifacts: artifacts}
}

// StoreResult describes what a Store call wrote.
type StoreResult struct {
	Inserted        int
	Skipped         []string
	CleanedLocation string
}

// Store writes the cleaned CSV artifact, even for zero records, and then
// inserts the records for the tenant. Rows whose order id already exists for
// the tenant are skipped; calling Store twice with the same records inserts
// nothing the second time.
func (s *Store) Store(ctx context.Context, records []domain.SalesRecord, tenantID, uploadID uuid.UUID) (StoreResult, error) {
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, records); err != nil {
		return StoreResult{}, fmt.Errorf("failed to encode cleaned file: %w", err)
	}
	location, err := s.artifacts.Put(ctx, storage.CleanedKey(uploadID.String()), &buf)
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to save cleaned file: %w", err)
	}

	rows := make([]domain.SalesRecord, len(records))
	for i, rec := range records {
		rec.TenantID = tenantID
		rec.UploadID = uploadID
		rows[i] = rec
	}

	inserted, err := s.sales.InsertBatch(ctx, rows)
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to insert sales rows: %w", err)
	}

	return StoreResult{
		Inserted:        inserted.Inserted,
		Skipped:         inserted.Skipped,
		CleanedLocation: location,
	}, nil
}
