// Package ingestion sequences an upload through header detection, mapping
// resolution, cleaning and storage.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/rpattn/salesingest/internal/auth"
	"github.com/rpattn/salesingest/internal/cleaning"
	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/mapping"
	"github.com/rpattn/salesingest/internal/repository"
	"github.com/rpattn/salesingest/internal/storage"
	"github.com/rpattn/salesingest/internal/tabular"

	"github.com/google/uuid"
)

// Service is the upload orchestrator.
type Service struct {
	uploads     repository.UploadRepository
	mappings    repository.ColumnMappingRepository
	audit       repository.AuditRepository
	store       *Store
	resolver    *mapping.Resolver
	transformer *cleaning.Transformer
}

type Option func(*Service)

// WithResolver replaces the resolver built from the default alias catalog.
func WithResolver(resolver *mapping.Resolver) Option {
	return func(s *Service) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// WithTransformer replaces the default cleaning transformer.
func WithTransformer(transformer *cleaning.Transformer) Option {
	return func(s *Service) {
		if transformer != nil {
			s.transformer = transformer
		}
	}
}

// NewService creates a new ingestion service.
func NewService(
	uploads repository.UploadRepository,
	mappings repository.ColumnMappingRepository,
	audit repository.AuditRepository,
	store *Store,
	opts ...Option,
) *Service {
	service := &Service{
		uploads:     uploads,
		mappings:    mappings,
		audit:       audit,
		store:       store,
		resolver:    mapping.NewResolver(mapping.DefaultCatalog()),
		transformer: cleaning.NewTransformer(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// DetectRequest describes a freshly uploaded file.
type DetectRequest struct {
	TenantID uuid.UUID
	FileName string
	Data     io.Reader
}

// CommitRequest carries the caller-confirmed mapping of a pending upload.
type CommitRequest struct {
	TenantID       uuid.UUID
	UploadID       uuid.UUID
	Required       domain.ColumnMapping
	Optional       domain.ColumnMapping
	SystemOptional domain.ColumnMapping
}

// Outcome is returned by Detect and Commit. A STORED outcome carries Stats;
// a MAPPING_PENDING outcome carries the mapping prompt.
type Outcome struct {
	UploadID          uuid.UUID              `json:"file_id"`
	State             domain.UploadState     `json:"state"`
	DetectedColumns   []string               `json:"detected_columns,omitempty"`
	RequiredColumns   []domain.Column        `json:"required_columns,omitempty"`
	OptionalColumns   []domain.Column        `json:"optional_columns,omitempty"`
	SuggestedOptional domain.ColumnMapping   `json:"system_optional_mapping,omitempty"`
	Stats             *domain.IngestionStats `json:"stats,omitempty"`
	TenantRows        int64                  `json:"tenant_total_rows,omitempty"`
}

// DefaultAuditLimit bounds an audit listing when the caller gives no limit.
const DefaultAuditLimit = 50

// Detect stores the raw file, reads its header row and either reuses the
// tenant's stored mapping to finish the run, or suspends with a mapping
// prompt.
func (s *Service) Detect(ctx context.Context, req DetectRequest) (Outcome, error) {
	if err := auth.EnforceTenantScope(ctx, req.TenantID); err != nil {
		return Outcome{}, err
	}
	format, err := tabular.FormatFromName(req.FileName)
	if err != nil {
		return Outcome{}, err
	}

	upload := domain.NewUpload(req.TenantID, req.FileName, string(format), "")
	upload.RawKey = storage.RawKey(upload.ID.String(), req.FileName)
	if _, err := s.store.artifacts.Put(ctx, upload.RawKey, req.Data); err != nil {
		return Outcome{}, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if _, err := s.uploads.Create(ctx, upload); err != nil {
		return Outcome{}, err
	}
	source := StoredSource{Store: s.store.artifacts, Key: upload.RawKey}

	headers, err := readHeaders(ctx, source, format)
	if err != nil {
		return Outcome{}, s.fail(ctx, upload, err)
	}
	if err := s.transition(ctx, upload, domain.UploadStateHeadersDetected, ""); err != nil {
		return Outcome{}, err
	}

	stored, err := s.mappings.Get(ctx, req.TenantID)
	switch {
	case err == nil && mapping.Reusable(stored.Mapping, headers):
		log.Printf("[INGEST] upload %s reuses stored mapping of tenant %s", upload.ID, req.TenantID)
		if err := s.transition(ctx, upload, domain.UploadStateMappingReused, ""); err != nil {
			return Outcome{}, err
		}
		return s.run(ctx, upload, source, format, stored.Mapping, false)
	case err != nil && !errors.Is(err, domain.ErrMappingNotFound):
		return Outcome{}, s.fail(ctx, upload, err)
	}

	suggestion := s.resolver.ResolveOptional(headers, domain.OptionalColumns())
	if err := s.transition(ctx, upload, domain.UploadStateMappingPending, ""); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		UploadID:          upload.ID,
		State:             domain.UploadStateMappingPending,
		DetectedColumns:   headers,
		RequiredColumns:   domain.RequiredColumns(),
		OptionalColumns:   domain.OptionalColumns(),
		SuggestedOptional: suggestion,
	}, nil
}

// Commit resumes a pending upload with the caller's mapping. An incomplete
// required mapping is rejected before the file is read and leaves the upload
// pending.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (Outcome, error) {
	if err := auth.EnforceTenantScope(ctx, req.TenantID); err != nil {
		return Outcome{}, err
	}
	upload, err := s.uploads.GetByID(ctx, req.UploadID)
	if err != nil {
		return Outcome{}, err
	}
	if upload.TenantID != req.TenantID {
		return Outcome{}, fmt.Errorf("upload %s: %w", upload.ID, domain.ErrUploadTenantMismatch)
	}
	if upload.State.Terminal() {
		return Outcome{}, fmt.Errorf("upload %s is %s: %w", upload.ID, upload.State, domain.ErrUploadFinished)
	}

	if err := mapping.ValidateRequired(req.Required); err != nil {
		return Outcome{}, err
	}
	final := mapping.Merge(req.SystemOptional, req.Optional, req.Required)

	source := StoredSource{Store: s.store.artifacts, Key: upload.RawKey}
	return s.run(ctx, upload, source, tabular.Format(upload.FileType), final, true)
}

// StoredMapping returns the tenant's confirmed mapping.
func (s *Service) StoredMapping(ctx context.Context, tenantID uuid.UUID) (domain.StoredColumnMapping, error) {
	if err := auth.EnforceTenantScope(ctx, tenantID); err != nil {
		return domain.StoredColumnMapping{}, err
	}
	return s.mappings.Get(ctx, tenantID)
}

// AuditTrail lists the tenant's audit entries, newest first.
func (s *Service) AuditTrail(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error) {
	if err := auth.EnforceTenantScope(ctx, tenantID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.audit.List(ctx, tenantID, limit, offset)
}

func (s *Service) run(
	ctx context.Context,
	upload domain.Upload,
	source Source,
	format tabular.Format,
	final domain.ColumnMapping,
	persistMapping bool,
) (Outcome, error) {
	table, err := readTable(ctx, source, format)
	if err != nil {
		return Outcome{}, s.fail(ctx, upload, err)
	}

	result, err := s.transformer.Clean(table, final)
	if err != nil {
		return Outcome{}, s.fail(ctx, upload, err)
	}
	if err := s.transition(ctx, upload, domain.UploadStateCleaned, ""); err != nil {
		return Outcome{}, err
	}

	stored, err := s.store.Store(ctx, result.Records, upload.TenantID, upload.ID)
	if err != nil {
		return Outcome{}, s.fail(ctx, upload, err)
	}

	stats := result.Stats
	stats.NewRowsInserted = stored.Inserted
	stats.CrossUploadDuplicatesSkipped = len(stored.Skipped)
	stats.CleanedFilePath = stored.CleanedLocation

	if persistMapping {
		if err := s.mappings.Put(ctx, upload.TenantID, final); err != nil {
			return Outcome{}, s.fail(ctx, upload, err)
		}
		s.record(ctx, upload, domain.AuditMappingSaved, "column mapping saved: "+describeMapping(final))
	}

	if err := s.transition(ctx, upload, domain.UploadStateStored, stored.CleanedLocation); err != nil {
		return Outcome{}, err
	}
	s.record(ctx, upload, domain.AuditUploadProcessed, fmt.Sprintf(
		"rows_before=%d rows_after=%d duplicates_removed=%d invalid_rows_removed=%d new_rows_inserted=%d",
		stats.RowsBefore, stats.RowsAfter, stats.DuplicatesRemoved, stats.InvalidRowsRemoved, stats.NewRowsInserted,
	))
	log.Printf("[INGEST] upload %s stored: %d of %d rows inserted", upload.ID, stats.NewRowsInserted, stats.RowsAfter)

	outcome := Outcome{UploadID: upload.ID, State: domain.UploadStateStored, Stats: &stats}
	// The upload is already stored; a failed count only drops the total.
	if total, err := s.store.sales.CountByTenant(ctx, upload.TenantID); err != nil {
		log.Printf("[INGEST] failed to count rows of tenant %s: %v", upload.TenantID, err)
	} else {
		outcome.TenantRows = total
	}
	return outcome, nil
}

func (s *Service) transition(ctx context.Context, upload domain.Upload, state domain.UploadState, cleanedLocation string) error {
	if err := s.uploads.UpdateState(ctx, upload.ID, state, cleanedLocation); err != nil {
		return fmt.Errorf("failed to move upload %s to %s: %w", upload.ID, state, err)
	}
	return nil
}

// fail moves the upload to FAILED, audits the cause and returns it.
func (s *Service) fail(ctx context.Context, upload domain.Upload, cause error) error {
	log.Printf("[INGEST] upload %s failed: %v", upload.ID, cause)
	if err := s.uploads.UpdateState(ctx, upload.ID, domain.UploadStateFailed, ""); err != nil {
		log.Printf("[INGEST] failed to mark upload %s as failed: %v", upload.ID, err)
	}
	s.record(ctx, upload, domain.AuditUploadFailed, cause.Error())
	return cause
}

func (s *Service) record(ctx context.Context, upload domain.Upload, eventType, message string) {
	if s.audit == nil {
		return
	}
	uploadID := upload.ID
	entry := domain.AuditEntry{
		TenantID:  upload.TenantID,
		UploadID:  &uploadID,
		EventType: eventType,
		Message:   message,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		log.Printf("[INGEST] failed to record %s for upload %s: %v", eventType, upload.ID, err)
	}
}

func readHeaders(ctx context.Context, source Source, format tabular.Format) ([]string, error) {
	rc, err := source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()
	return tabular.DetectHeaders(rc, format)
}

func readTable(ctx context.Context, source Source, format tabular.Format) (domain.RawTable, error) {
	rc, err := source.Open(ctx)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()
	return tabular.ReadTable(rc, format)
}

func describeMapping(m domain.ColumnMapping) string {
	parts := make([]string, 0, len(m))
	for _, col := range m.Columns() {
		parts = append(parts, fmt.Sprintf("%s=%q", col, m[col]))
	}
	return strings.Join(parts, ", ")
}
