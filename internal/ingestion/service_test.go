package ingestion

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/salesingest/internal/auth"
	"github.com/rpattn/salesingest/internal/cleaning"
	"github.com/rpattn/salesingest/internal/db"
	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/repository"
	"github.com/rpattn/salesingest/internal/repository/sqlite"
	"github.com/rpattn/salesingest/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const salesCSV = "Order ID,Order Date,SKU,Qty,Price,Payment Mode,Product,Region,Notes\n" +
	"A1,15/03/2024,P-1,2,10,Card,Widget,,x\n" +
	"A1,15/03/2024,P-1,2,10,Card,Widget,,x\n" +
	"A2,16/03/2024,P-2,1,$5.50,Cash,,North,\n" +
	"A3,17/03/2024,P-3,0,5,Cash,Gadget,South,\n"

type harness struct {
	service   *Service
	tenants   repository.TenantRepository
	uploads   repository.UploadRepository
	mappings  repository.ColumnMappingRepository
	sales     repository.SalesRepository
	audit     repository.AuditRepository
	artifacts *storage.LocalStore
	tenant    domain.Tenant
}

func newHarness(t *testing.T) harness {
	t.Helper()
	conn := db.OpenTestSQLite(t)
	artifacts, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	h := harness{
		tenants:   sqlite.NewTenantRepository(conn),
		uploads:   sqlite.NewUploadRepository(conn),
		mappings:  sqlite.NewColumnMappingRepository(conn),
		sales:     sqlite.NewSalesRepository(conn),
		audit:     sqlite.NewAuditRepository(conn),
		artifacts: artifacts,
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h.service = NewService(
		h.uploads,
		h.mappings,
		h.audit,
		NewStore(h.sales, artifacts),
		WithTransformer(cleaning.NewTransformer(cleaning.WithClock(func() time.Time { return now }))),
	)

	h.tenant, err = h.tenants.Create(context.Background(), domain.NewTenant("Acme", true))
	require.NoError(t, err)
	return h
}

func requiredMapping() domain.ColumnMapping {
	return domain.ColumnMapping{
		domain.ColumnOrderID:     "Order ID",
		domain.ColumnOrderDate:   "Order Date",
		domain.ColumnProductID:   "SKU",
		domain.ColumnQuantity:    "Qty",
		domain.ColumnUnitPrice:   "Price",
		domain.ColumnPaymentMode: "Payment Mode",
	}
}

func (h harness) detect(t *testing.T, fileName, content string) Outcome {
	t.Helper()
	outcome, err := h.service.Detect(context.Background(), DetectRequest{
		TenantID: h.tenant.ID,
		FileName: fileName,
		Data:     strings.NewReader(content),
	})
	require.NoError(t, err)
	return outcome
}

func (h harness) commit(t *testing.T, pending Outcome) Outcome {
	t.Helper()
	outcome, err := h.service.Commit(context.Background(), CommitRequest{
		TenantID:       h.tenant.ID,
		UploadID:       pending.UploadID,
		Required:       requiredMapping(),
		SystemOptional: pending.SuggestedOptional,
	})
	require.NoError(t, err)
	return outcome
}

func (h harness) state(t *testing.T, id uuid.UUID) domain.UploadState {
	t.Helper()
	upload, err := h.uploads.GetByID(context.Background(), id)
	require.NoError(t, err)
	return upload.State
}

func (h harness) events(t *testing.T) []string {
	t.Helper()
	entries, err := h.audit.List(context.Background(), h.tenant.ID, 50, 0)
	require.NoError(t, err)
	events := make([]string, len(entries))
	for i, e := range entries {
		events[i] = e.EventType
	}
	return events
}

func TestDetectPromptsForMappingOnFirstUpload(t *testing.T) {
	h := newHarness(t)

	outcome := h.detect(t, "sales.csv", salesCSV)

	assert.Equal(t, domain.UploadStateMappingPending, outcome.State)
	assert.Equal(t, []string{"Order ID", "Order Date", "SKU", "Qty", "Price", "Payment Mode", "Product", "Region", "Notes"}, outcome.DetectedColumns)
	assert.Equal(t, domain.RequiredColumns(), outcome.RequiredColumns)
	assert.Equal(t, domain.OptionalColumns(), outcome.OptionalColumns)
	assert.Equal(t, domain.ColumnMapping{
		domain.ColumnProductName: "Product",
		domain.ColumnState:       "Region",
	}, outcome.SuggestedOptional)
	assert.Nil(t, outcome.Stats)
	assert.Equal(t, domain.UploadStateMappingPending, h.state(t, outcome.UploadID))

	upload, err := h.uploads.GetByID(context.Background(), outcome.UploadID)
	require.NoError(t, err)
	rc, err := h.artifacts.Open(context.Background(), upload.RawKey)
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, salesCSV, string(raw))

	count, err := h.sales.CountByTenant(context.Background(), h.tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCommitCleansStoresAndSavesMapping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.detect(t, "sales.csv", salesCSV)
	outcome := h.commit(t, pending)

	require.NotNil(t, outcome.Stats)
	stats := *outcome.Stats
	assert.Equal(t, domain.UploadStateStored, outcome.State)
	assert.Equal(t, 4, stats.RowsBefore)
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	assert.Equal(t, 1, stats.InvalidRowsRemoved)
	assert.Equal(t, 2, stats.RowsAfter)
	assert.Equal(t, 2, stats.NewRowsInserted)
	assert.Zero(t, stats.CrossUploadDuplicatesSkipped)
	assert.EqualValues(t, 2, outcome.TenantRows)

	_, err := os.Stat(stats.CleanedFilePath)
	require.NoError(t, err)
	upload, err := h.uploads.GetByID(ctx, pending.UploadID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStateStored, upload.State)
	assert.Equal(t, stats.CleanedFilePath, upload.CleanedLocation)

	stored, err := h.service.StoredMapping(ctx, h.tenant.ID)
	require.NoError(t, err)
	expected := requiredMapping()
	expected[domain.ColumnProductName] = "Product"
	expected[domain.ColumnState] = "Region"
	assert.Equal(t, expected, stored.Mapping)

	assert.ElementsMatch(t, []string{domain.AuditMappingSaved, domain.AuditUploadProcessed}, h.events(t))
}

func TestCommitOverridePrecedence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.detect(t, "sales.csv", salesCSV)
	_, err := h.service.Commit(ctx, CommitRequest{
		TenantID:       h.tenant.ID,
		UploadID:       pending.UploadID,
		Required:       requiredMapping(),
		Optional:       domain.ColumnMapping{domain.ColumnState: "", domain.ColumnCategory: "Notes"},
		SystemOptional: pending.SuggestedOptional,
	})
	require.NoError(t, err)

	stored, err := h.service.StoredMapping(ctx, h.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Region", stored.Mapping[domain.ColumnState])
	assert.Equal(t, "Notes", stored.Mapping[domain.ColumnCategory])
	assert.Equal(t, "Product", stored.Mapping[domain.ColumnProductName])
}

func TestDetectReusesStoredMappingAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.commit(t, h.detect(t, "sales.csv", salesCSV))
	before, err := h.service.StoredMapping(ctx, h.tenant.ID)
	require.NoError(t, err)

	// Same rows with an extra column the stored mapping does not reference.
	withExtra := strings.ReplaceAll(salesCSV, "Notes\n", "Notes,Discount\n")
	outcome := h.detect(t, "sales_again.csv", withExtra)

	assert.Equal(t, domain.UploadStateStored, outcome.State)
	require.NotNil(t, outcome.Stats)
	assert.Zero(t, outcome.Stats.NewRowsInserted)
	assert.Equal(t, 2, outcome.Stats.CrossUploadDuplicatesSkipped)
	assert.Equal(t, 2, outcome.Stats.RowsAfter)
	assert.EqualValues(t, 2, outcome.TenantRows)

	count, err := h.sales.CountByTenant(ctx, h.tenant.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	after, err := h.service.StoredMapping(ctx, h.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "reuse must not rewrite the mapping")
}

func TestDetectPromptsWhenStoredMappingNoLongerFits(t *testing.T) {
	h := newHarness(t)

	h.commit(t, h.detect(t, "sales.csv", salesCSV))
	renamed := strings.Replace(salesCSV, "Payment Mode", "Paid With", 1)
	outcome := h.detect(t, "renamed.csv", renamed)

	assert.Equal(t, domain.UploadStateMappingPending, outcome.State)
	assert.Contains(t, outcome.DetectedColumns, "Paid With")
}

func TestCommitIncompleteMappingProcessesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.detect(t, "sales.csv", salesCSV)
	required := requiredMapping()
	delete(required, domain.ColumnPaymentMode)

	_, err := h.service.Commit(ctx, CommitRequest{
		TenantID: h.tenant.ID,
		UploadID: pending.UploadID,
		Required: required,
	})
	var incomplete *domain.IncompleteMappingError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []domain.Column{domain.ColumnPaymentMode}, incomplete.Missing)

	assert.Equal(t, domain.UploadStateMappingPending, h.state(t, pending.UploadID))
	count, err := h.sales.CountByTenant(ctx, h.tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = h.service.StoredMapping(ctx, h.tenant.ID)
	assert.ErrorIs(t, err, domain.ErrMappingNotFound)

	// The upload can still be completed afterwards.
	outcome := h.commit(t, pending)
	assert.Equal(t, domain.UploadStateStored, outcome.State)
}

func TestServiceEnforcesAuthenticatedTenantScope(t *testing.T) {
	h := newHarness(t)
	pending := h.detect(t, "sales.csv", salesCSV)
	other := auth.ContextWithTenantID(context.Background(), uuid.New())

	_, err := h.service.Detect(other, DetectRequest{
		TenantID: h.tenant.ID,
		FileName: "sales.csv",
		Data:     strings.NewReader(salesCSV),
	})
	assert.ErrorIs(t, err, auth.ErrTenantScope)

	_, err = h.service.Commit(other, CommitRequest{
		TenantID: h.tenant.ID,
		UploadID: pending.UploadID,
		Required: requiredMapping(),
	})
	assert.ErrorIs(t, err, auth.ErrTenantScope)
	assert.Equal(t, domain.UploadStateMappingPending, h.state(t, pending.UploadID))

	_, err = h.service.StoredMapping(other, h.tenant.ID)
	assert.ErrorIs(t, err, auth.ErrTenantScope)
	_, err = h.service.AuditTrail(other, h.tenant.ID, 0, 0)
	assert.ErrorIs(t, err, auth.ErrTenantScope)

	scoped := auth.ContextWithTenantID(context.Background(), h.tenant.ID)
	outcome, err := h.service.Commit(scoped, CommitRequest{
		TenantID:       h.tenant.ID,
		UploadID:       pending.UploadID,
		Required:       requiredMapping(),
		SystemOptional: pending.SuggestedOptional,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStateStored, outcome.State)
}

func TestAuditTrailPagesNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.commit(t, h.detect(t, "sales.csv", salesCSV))

	entries, err := h.service.AuditTrail(ctx, h.tenant.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditUploadProcessed, entries[0].EventType)
	assert.Equal(t, domain.AuditMappingSaved, entries[1].EventType)

	page, err := h.service.AuditTrail(ctx, h.tenant.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.AuditMappingSaved, page[0].EventType)

	foreign, err := h.service.AuditTrail(ctx, uuid.New(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestXLSXDateCellsSurviveCleaning(t *testing.T) {
	h := newHarness(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Order ID", "Order Date", "SKU", "Qty", "Price", "Payment Mode"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"X1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "P-1", 2, 9.99, "UPI"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	pending := h.detect(t, "sales.xlsx", buf.String())
	outcome := h.commit(t, pending)

	require.NotNil(t, outcome.Stats)
	assert.Equal(t, 1, outcome.Stats.RowsAfter)
	assert.Zero(t, outcome.Stats.InvalidRowsRemoved)
	assert.Equal(t, 1, outcome.Stats.NewRowsInserted)
}

func TestCommitRejectsForeignTenantAndFinishedUploads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.detect(t, "sales.csv", salesCSV)

	_, err := h.service.Commit(ctx, CommitRequest{
		TenantID: uuid.New(),
		UploadID: pending.UploadID,
		Required: requiredMapping(),
	})
	assert.ErrorIs(t, err, domain.ErrUploadTenantMismatch)

	h.commit(t, pending)
	_, err = h.service.Commit(ctx, CommitRequest{
		TenantID: h.tenant.ID,
		UploadID: pending.UploadID,
		Required: requiredMapping(),
	})
	assert.ErrorIs(t, err, domain.ErrUploadFinished)

	_, err = h.service.Commit(ctx, CommitRequest{
		TenantID: h.tenant.ID,
		UploadID: uuid.New(),
		Required: requiredMapping(),
	})
	assert.ErrorIs(t, err, domain.ErrUploadNotFound)
}

func TestCommitFailsWhenMappedHeaderIsAbsent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.detect(t, "sales.csv", salesCSV)
	required := requiredMapping()
	required[domain.ColumnQuantity] = "Units"

	_, err := h.service.Commit(ctx, CommitRequest{
		TenantID: h.tenant.ID,
		UploadID: pending.UploadID,
		Required: required,
	})
	var missing *domain.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []domain.Column{domain.ColumnQuantity}, missing.Columns)
	assert.Equal(t, domain.UploadStateFailed, h.state(t, pending.UploadID))
	assert.Equal(t, []string{domain.AuditUploadFailed}, h.events(t))
}

func TestDetectUnreadableSourceMarksUploadFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Detect(ctx, DetectRequest{
		TenantID: h.tenant.ID,
		FileName: "broken.xlsx",
		Data:     strings.NewReader("definitely not a workbook"),
	})
	var unreadable *domain.UnreadableSourceError
	require.ErrorAs(t, err, &unreadable)

	entries, err := h.audit.List(ctx, h.tenant.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditUploadFailed, entries[0].EventType)
	require.NotNil(t, entries[0].UploadID)
	assert.Equal(t, domain.UploadStateFailed, h.state(t, *entries[0].UploadID))
}

func TestDetectRejectsUnsupportedFormatBeforeStoring(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Detect(context.Background(), DetectRequest{
		TenantID: h.tenant.ID,
		FileName: "sales.pdf",
		Data:     strings.NewReader("%PDF"),
	})
	require.Error(t, err)
	assert.Empty(t, h.events(t))
}

func TestZeroSurvivingRowsStillStores(t *testing.T) {
	h := newHarness(t)

	content := "Order ID,Order Date,SKU,Qty,Price,Payment Mode\n" +
		"B1,15/03/2024,P-1,0,10,Card\n"
	outcome := h.commit(t, h.detect(t, "empty.csv", content))

	assert.Equal(t, domain.UploadStateStored, outcome.State)
	assert.Zero(t, outcome.Stats.RowsAfter)
	_, err := os.Stat(outcome.Stats.CleanedFilePath)
	require.NoError(t, err)
}

type failingAudit struct{}

var _ repository.AuditRepository = (*failingAudit)(nil)

func (failingAudit) Record(ctx context.Context, entry domain.AuditEntry) error {
	return errors.New("audit unavailable")
}

func (failingAudit) List(ctx context.Context, tenantID uuid.UUID, limit int, offset int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestAuditFailureDoesNotFailIngestion(t *testing.T) {
	h := newHarness(t)
	h.service.audit = failingAudit{}

	outcome := h.commit(t, h.detect(t, "sales.csv", salesCSV))
	assert.Equal(t, domain.UploadStateStored, outcome.State)
}

func TestBytesSourceIsReReadable(t *testing.T) {
	src := BytesSource("a,b\n1,2\n")
	for i := 0; i < 2; i++ {
		headers, err := readHeaders(context.Background(), src, "csv")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, headers)
	}

	table, err := readTable(context.Background(), src, "csv")
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"a": "1", "b": "2"}}, table.Rows)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
