package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/SOXauto-sub001/internal/contract"
	"github.com/gvern/SOXauto-sub001/internal/lineage"
	"github.com/gvern/SOXauto-sub001/internal/testutil"
	"github.com/gvern/SOXauto-sub001/internal/threshold"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(id string) *lineage.SchemaReport {
	clock := testutil.NewAuditClock()
	rec := lineage.NewRecorder("ar_open_items", true,
		lineage.WithClock(clock.Now), lineage.WithReportID(id))
	rec.Rename("Customer No_", "customer_id", "Customer No_")
	rec.Cast("customer_id", "string", "string", 0, 0)
	return rec.Finalize(1, "abc123", 10, 10, 2, 2)
}

func TestOpenAppliesPragmasAndMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
	require.NoError(t, s.Close())

	// Reopening an existing database is a no-op.
	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWriteAndReadReport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	report := sampleReport("report-0001")
	require.NoError(t, s.WriteReport(ctx, report))

	got, err := s.ReadReport(ctx, "report-0001")
	require.NoError(t, err)

	assert.Equal(t, report.DatasetID, got.DatasetID)
	assert.Equal(t, report.ContractHash, got.ContractHash)
	assert.Equal(t, report.ColumnsRenamed, got.ColumnsRenamed)
	assert.Len(t, got.Events, 2)
}

func TestWriteReportIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	report := sampleReport("report-0001")
	require.NoError(t, s.WriteReport(ctx, report))
	require.NoError(t, s.WriteReport(ctx, report), "duplicate write is silently ignored")

	reports, err := s.ReadReportsForDataset(ctx, "ar_open_items")
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestReadReportNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadReport(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadReportsForDatasetOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	later := sampleReport("report-b")
	later.CreatedAt = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	earlier := sampleReport("report-a")
	earlier.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteReport(ctx, later))
	require.NoError(t, s.WriteReport(ctx, earlier))

	reports, err := s.ReadReportsForDataset(ctx, "ar_open_items")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "report-a", reports[0].ReportID, "oldest first")
	assert.Equal(t, "report-b", reports[1].ReportID)

	empty, err := s.ReadReportsForDataset(ctx, "nothing_here")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestWriteAndReadResolutions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	q := threshold.Query{
		Country: "EG", Type: contract.ThresholdBucketAggregate,
		GLAccount: "18412", Category: "Voucher",
	}
	res := &contract.ResolvedThreshold{
		Value: 250.0, Type: contract.ThresholdBucketAggregate, Country: "EG",
		ContractVersion: 1, ContractHash: "deadbeef",
		RuleDescription: "EG accrual bucket tolerance",
		Source:          contract.SourceCatalog, Specificity: 2, MatchedRules: 3,
	}

	id, err := s.WriteResolution(ctx, q, res, at)
	require.NoError(t, err)
	assert.Positive(t, id)

	records, err := s.ReadResolutionsForCountry(ctx, "EG")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "EG", rec.Country)
	assert.Equal(t, "bucket_aggregate", rec.Type)
	assert.Equal(t, "18412", rec.GLAccount)
	assert.Equal(t, "Voucher", rec.Category)
	assert.Equal(t, 250.0, rec.Value)
	assert.Equal(t, "catalog", rec.Source)
	assert.Equal(t, 2, rec.Specificity)
	assert.Equal(t, 3, rec.MatchedRules)
	assert.True(t, rec.ResolvedAt.Equal(at))
}

func TestResolutionsAreNotDeduplicated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	q := threshold.Query{Country: "EG", Type: contract.ThresholdLineItem}
	res := &contract.ResolvedThreshold{
		Value: 1000.0, Type: contract.ThresholdLineItem, Country: "EG",
		ContractHash: contract.FallbackHash, Source: contract.SourceFallback,
		RuleDescription: "hardcoded fallback constant",
	}

	_, err := s.WriteResolution(ctx, q, res, at)
	require.NoError(t, err)
	_, err = s.WriteResolution(ctx, q, res, at.Add(time.Minute))
	require.NoError(t, err)

	records, err := s.ReadResolutionsForCountry(ctx, "EG")
	require.NoError(t, err)
	assert.Len(t, records, 2, "every lookup is evidence, repeats included")

	count, err := s.CountFallbackResolutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
