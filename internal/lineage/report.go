package lineage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SchemaReport aggregates everything one contract application did to a
// dataset. Created fresh per Apply call, never shared, never mutated
// after finalization.
type SchemaReport struct {
	ReportID        string    `json:"report_id"`
	DatasetID       string    `json:"dataset_id"`
	ContractVersion int       `json:"contract_version"`
	ContractHash    string    `json:"contract_hash"`
	CreatedAt       time.Time `json:"created_at"`

	RowsBefore    int `json:"rows_before"`
	RowsAfter     int `json:"rows_after"`
	ColumnsBefore int `json:"columns_before"`
	ColumnsAfter  int `json:"columns_after"`

	// ColumnsRenamed maps the matched raw name to the canonical name.
	ColumnsRenamed map[string]string `json:"columns_renamed,omitempty"`
	// ColumnsCast maps canonical name to the target dtype.
	ColumnsCast map[string]string `json:"columns_cast,omitempty"`
	// UnknownColumns were present in the dataset but owned by no
	// contract field. Kept unless drop_unknown pruned them.
	UnknownColumns []string `json:"unknown_columns,omitempty"`
	DroppedColumns []string `json:"dropped_columns,omitempty"`
	AddedColumns   []string `json:"added_columns,omitempty"`

	// MissingRequired lists required canonical fields absent after
	// normalization. Populated in lax mode; strict mode errors
	// instead.
	MissingRequired []string `json:"missing_required,omitempty"`

	InvalidCounts map[string]int `json:"invalid_counts,omitempty"`
	FilledCounts  map[string]int `json:"filled_counts,omitempty"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Events []TransformEvent `json:"events,omitempty"`
}

// Recorder accumulates TransformEvents during one contract
// application and produces the finalized SchemaReport.
//
// Track=false skips event recording only; aggregate counters on the
// report are always maintained, so lax observability never changes
// transformation behavior.
type Recorder struct {
	report SchemaReport
	track  bool
	now    func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock injects the timestamp source. Tests pass a deterministic
// clock; production uses time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithReportID pins the report id. Tests use this for golden
// comparison; production ids are random UUIDs.
func WithReportID(id string) Option {
	return func(r *Recorder) { r.report.ReportID = id }
}

// NewRecorder creates a recorder for one contract application.
func NewRecorder(datasetID string, track bool, opts ...Option) *Recorder {
	r := &Recorder{
		report: SchemaReport{
			ReportID:       uuid.NewString(),
			DatasetID:      datasetID,
			ColumnsRenamed: make(map[string]string),
			ColumnsCast:    make(map[string]string),
			InvalidCounts:  make(map[string]int),
			FilledCounts:   make(map[string]int),
		},
		track: track,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.report.CreatedAt = r.now().UTC()
	return r
}

// Tracking reports whether per-event recording is enabled.
func (r *Recorder) Tracking() bool {
	return r.track
}

func (r *Recorder) record(ev TransformEvent) {
	if !r.track {
		return
	}
	ev.Timestamp = r.now().UTC()
	r.report.Events = append(r.report.Events, ev)
}

// Rename records one alias-to-canonical rename, including which
// literal alias matched.
func (r *Recorder) Rename(from, to, matchedAlias string) {
	r.report.ColumnsRenamed[from] = to
	r.record(TransformEvent{
		Type:    EventRename,
		Columns: []string{to},
		Before:  from,
		After:   to,
		Meta:    map[string]string{"matched_alias": matchedAlias},
	})
}

// Cast records one column coercion.
func (r *Recorder) Cast(column, fromType, toType string, invalid, nulls int) {
	r.report.ColumnsCast[column] = toType
	if invalid > 0 {
		r.report.InvalidCounts[column] += invalid
	}
	r.record(TransformEvent{
		Type:         EventCast,
		Columns:      []string{column},
		Before:       fromType,
		After:        toType,
		InvalidCount: invalid,
		NullCount:    nulls,
	})
}

// Fill records one fill-policy application.
func (r *Recorder) Fill(column, policy string, filled int) {
	if filled > 0 {
		r.report.FilledCounts[column] += filled
	}
	r.record(TransformEvent{
		Type:        EventFill,
		Columns:     []string{column},
		FilledCount: filled,
		Meta:        map[string]string{"fill_policy": policy},
	})
}

// Drop records one pruned unknown column.
func (r *Recorder) Drop(column, reason string) {
	r.report.DroppedColumns = append(r.report.DroppedColumns, column)
	r.record(TransformEvent{
		Type:    EventDrop,
		Columns: []string{column},
		Meta:    map[string]string{"reason": reason},
	})
}

// Add records one column added by the engine (reserved for fill-derived
// audit columns; the current pipeline never synthesizes columns).
func (r *Recorder) Add(column string) {
	r.report.AddedColumns = append(r.report.AddedColumns, column)
	r.record(TransformEvent{
		Type:    EventAdd,
		Columns: []string{column},
	})
}

// Unknown records a column the contract does not own, kept in place.
func (r *Recorder) Unknown(column string) {
	r.report.UnknownColumns = append(r.report.UnknownColumns, column)
}

// MissingRequired records a required field absent after normalization.
func (r *Recorder) MissingRequired(fields []string) {
	r.report.MissingRequired = append(r.report.MissingRequired, fields...)
}

// Warn appends a warning message.
func (r *Recorder) Warn(format string, args ...any) {
	r.report.Warnings = append(r.report.Warnings, fmt.Sprintf(format, args...))
}

// Fail appends an error message without aborting the run. Fatal
// conditions return Go errors instead; this is for conditions the
// caller chose to tolerate.
func (r *Recorder) Fail(format string, args ...any) {
	r.report.Errors = append(r.report.Errors, fmt.Sprintf(format, args...))
}

// Finalize stamps contract identity and shape counters and returns the
// completed report. The recorder must not be used afterwards.
func (r *Recorder) Finalize(version int, hash string, rowsBefore, rowsAfter, colsBefore, colsAfter int) *SchemaReport {
	r.report.ContractVersion = version
	r.report.ContractHash = hash
	r.report.RowsBefore = rowsBefore
	r.report.RowsAfter = rowsAfter
	r.report.ColumnsBefore = colsBefore
	r.report.ColumnsAfter = colsAfter
	sort.Strings(r.report.UnknownColumns)
	out := r.report
	return &out
}

// MarshalIndent serializes the report for artifact storage. Map keys
// serialize in sorted order, so output is deterministic for a given
// report.
func (s *SchemaReport) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
