package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/salesingest/internal/db"
	"github.com/rpattn/salesingest/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tenants  *tenantRepository
	uploads  *uploadRepository
	mappings *columnMappingRepository
	sales    *salesRepository
	audit    *auditRepository

	tenant domain.Tenant
	upload domain.Upload
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := db.OpenTestSQLite(t)
	ctx := context.Background()

	f := fixture{
		tenants:  &tenantRepository{db: conn},
		uploads:  &uploadRepository{db: conn},
		mappings: &columnMappingRepository{db: conn},
		sales:    &salesRepository{db: conn},
		audit:    &auditRepository{db: conn},
	}

	tenant, err := f.tenants.Create(ctx, domain.NewTenant("Acme", true))
	require.NoError(t, err)
	f.tenant = tenant

	upload, err := f.uploads.Create(ctx, domain.NewUpload(tenant.ID, "sales.csv", "csv", "raw_files/sales.csv"))
	require.NoError(t, err)
	f.upload = upload
	return f
}

func salesRecord(f fixture, orderID string) domain.SalesRecord {
	return domain.SalesRecord{
		TenantID:     f.tenant.ID,
		UploadID:     f.upload.ID,
		OrderID:      orderID,
		OrderDate:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ProductID:    "P-1",
		Quantity:     2,
		UnitPrice:    5,
		TotalAmount:  10,
		PaymentMode:  "Cash",
		ProductName:  domain.UnknownValue,
		Category:     domain.UnknownValue,
		SalesChannel: domain.UnknownValue,
		State:        domain.UnknownValue,
		City:         domain.UnknownValue,
	}
}

func TestTenantRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.tenants.GetByID(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.True(t, got.Active)

	suspended, err := f.tenants.SetActive(ctx, f.tenant.ID, false)
	require.NoError(t, err)
	assert.False(t, suspended.Active)

	_, err = f.tenants.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrTenantNotFound))

	_, err = f.tenants.SetActive(ctx, uuid.New(), true)
	assert.True(t, errors.Is(err, domain.ErrTenantNotFound))
}

func TestUploadRepositoryUpdateState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uploads.UpdateState(ctx, f.upload.ID, domain.UploadStateMappingPending, ""))
	got, err := f.uploads.GetByID(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStateMappingPending, got.State)
	assert.Empty(t, got.CleanedLocation)

	require.NoError(t, f.uploads.UpdateState(ctx, f.upload.ID, domain.UploadStateCleaned, "cleaned_files/cleaned_x.csv"))
	require.NoError(t, f.uploads.UpdateState(ctx, f.upload.ID, domain.UploadStateStored, ""))
	got, err = f.uploads.GetByID(ctx, f.upload.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStateStored, got.State)
	assert.Equal(t, "cleaned_files/cleaned_x.csv", got.CleanedLocation)
	assert.Equal(t, f.tenant.ID, got.TenantID)

	err = f.uploads.UpdateState(ctx, uuid.New(), domain.UploadStateFailed, "")
	assert.True(t, errors.Is(err, domain.ErrUploadNotFound))

	_, err = f.uploads.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrUploadNotFound))
}

func TestColumnMappingRepositoryUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mappings.Get(ctx, f.tenant.ID)
	require.ErrorIs(t, err, domain.ErrMappingNotFound)

	first := domain.ColumnMapping{domain.ColumnOrderID: "order_no", domain.ColumnCity: "Town"}
	require.NoError(t, f.mappings.Put(ctx, f.tenant.ID, first))

	second := domain.ColumnMapping{domain.ColumnOrderID: "Order Ref"}
	require.NoError(t, f.mappings.Put(ctx, f.tenant.ID, second))

	stored, err := f.mappings.Get(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, second, stored.Mapping)
	assert.Equal(t, f.tenant.ID, stored.TenantID)

	var count int
	require.NoError(t, f.mappings.db.QueryRow(`SELECT COUNT(*) FROM column_mappings`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSalesRepositoryInsertBatchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := []domain.SalesRecord{salesRecord(f, "A1"), salesRecord(f, "A2")}
	result, err := f.sales.InsertBatch(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Empty(t, result.Skipped)

	result, err = f.sales.InsertBatch(ctx, append(records, salesRecord(f, "A3")))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, []string{"A1", "A2"}, result.Skipped)

	count, err := f.sales.CountByTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSalesRepositoryKeysAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.tenants.Create(ctx, domain.NewTenant("Globex", true))
	require.NoError(t, err)
	otherUpload, err := f.uploads.Create(ctx, domain.NewUpload(other.ID, "sales.csv", "csv", "raw_files/other.csv"))
	require.NoError(t, err)

	_, err = f.sales.InsertBatch(ctx, []domain.SalesRecord{salesRecord(f, "A1")})
	require.NoError(t, err)

	rec := salesRecord(f, "A1")
	rec.TenantID = other.ID
	rec.UploadID = otherUpload.ID
	result, err := f.sales.InsertBatch(ctx, []domain.SalesRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
}

func TestSalesRepositoryRollsBackOnHardFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := salesRecord(f, "B2")
	bad.UploadID = uuid.New()
	_, err := f.sales.InsertBatch(ctx, []domain.SalesRecord{salesRecord(f, "B1"), bad})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrDuplicateKey))

	count, err := f.sales.CountByTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAuditRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uploadID := f.upload.ID
	require.NoError(t, f.audit.Record(ctx, domain.AuditEntry{
		TenantID:  f.tenant.ID,
		EventType: domain.AuditMappingSaved,
		Message:   "mapping saved",
	}))
	require.NoError(t, f.audit.Record(ctx, domain.AuditEntry{
		TenantID:  f.tenant.ID,
		UploadID:  &uploadID,
		EventType: domain.AuditUploadProcessed,
		Message:   "processed",
	}))

	entries, err := f.audit.List(ctx, f.tenant.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditUploadProcessed, entries[0].EventType)
	require.NotNil(t, entries[0].UploadID)
	assert.Equal(t, uploadID, *entries[0].UploadID)
	assert.Nil(t, entries[1].UploadID)
}
