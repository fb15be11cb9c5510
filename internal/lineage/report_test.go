package lineage

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/SOXauto-sub001/internal/testutil"
)

func TestRecorderAccumulatesRenames(t *testing.T) {
	r := NewRecorder("ar_open_items", true)

	r.Rename("Customer No_", "customer_id", "Customer No_")
	r.Rename("rem_amt_LCY", "amount_lcy", "rem_amt_LCY")

	rep := r.Finalize(1, "hash", 10, 10, 2, 2)

	assert.Equal(t, map[string]string{
		"Customer No_": "customer_id",
		"rem_amt_LCY":  "amount_lcy",
	}, rep.ColumnsRenamed)
	require.Len(t, rep.Events, 2)
	assert.Equal(t, EventRename, rep.Events[0].Type)
	assert.Equal(t, "Customer No_", rep.Events[0].Meta["matched_alias"],
		"event must record which literal alias matched")
}

func TestRecorderTrackFalseSkipsEventsOnly(t *testing.T) {
	r := NewRecorder("ar_open_items", false)

	r.Rename("Customer No_", "customer_id", "Customer No_")
	r.Cast("customer_id", "string", "string", 2, 0)
	r.Fill("customer_id", "fill_empty", 3)

	rep := r.Finalize(1, "hash", 5, 5, 1, 1)

	assert.Empty(t, rep.Events, "track=false records no events")
	assert.Equal(t, "customer_id", rep.ColumnsRenamed["Customer No_"],
		"aggregates are still maintained")
	assert.Equal(t, 2, rep.InvalidCounts["customer_id"])
	assert.Equal(t, 3, rep.FilledCounts["customer_id"])
}

func TestRecorderZeroCountsOmitted(t *testing.T) {
	r := NewRecorder("x", true)
	r.Cast("a", "string", "float", 0, 0)
	r.Fill("a", "keep_null", 0)

	rep := r.Finalize(1, "h", 1, 1, 1, 1)

	assert.Empty(t, rep.InvalidCounts, "zero invalid leaves no counter entry")
	assert.Empty(t, rep.FilledCounts, "zero filled leaves no counter entry")
}

func TestFinalizeSortsUnknownColumns(t *testing.T) {
	r := NewRecorder("x", false)
	r.Unknown("zulu")
	r.Unknown("alpha")

	rep := r.Finalize(1, "h", 0, 0, 2, 2)
	assert.Equal(t, []string{"alpha", "zulu"}, rep.UnknownColumns)
}

func TestFinalizeReturnsIndependentCopy(t *testing.T) {
	r := NewRecorder("x", false)
	rep1 := r.Finalize(1, "h1", 0, 0, 0, 0)
	rep2 := r.Finalize(2, "h2", 0, 0, 0, 0)

	assert.Equal(t, 1, rep1.ContractVersion, "earlier report unaffected by later finalize")
	assert.Equal(t, 2, rep2.ContractVersion)
}

func TestSchemaReportGolden(t *testing.T) {
	clk := testutil.NewAuditClock()
	r := NewRecorder("ar_open_items", true,
		WithClock(clk.Now),
		WithReportID("report-fixed-0001"))

	r.Rename("Customer No_", "customer_id", "Customer No_")
	r.Rename("rem_amt_LCY", "amount_lcy", "rem_amt_LCY")
	r.Cast("amount_lcy", "string", "float", 0, 1)
	r.Fill("amount_lcy", "fill_zero", 1)
	r.Unknown("legacy_flag")

	rep := r.Finalize(3, "deadbeef", 2, 2, 3, 3)

	data, err := rep.MarshalIndent()
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "schema_report", data)
}
