package schema

import (
	"errors"
	"fmt"
	"time"

	"github.com/gvern/SOXauto-sub001/internal/catalog"
	"github.com/gvern/SOXauto-sub001/internal/contract"
	"github.com/gvern/SOXauto-sub001/internal/dataset"
	"github.com/gvern/SOXauto-sub001/internal/lineage"
)

// Options control one contract application.
type Options struct {
	// Version pins the contract version; <= 0 resolves via env
	// override then latest.
	Version int
	// Strict turns missing required fields into an error. Lax mode
	// records them on the report and continues.
	Strict bool
	// Cast enables semantic-tag coercion and fill policies. Off, the
	// pipeline only renames and classifies.
	Cast bool
	// Track enables per-event lineage recording. Aggregate report
	// counters are maintained regardless.
	Track bool
	// DropUnknown prunes every column the contract does not own.
	// Off, unknown columns are kept and listed on the report.
	DropUnknown bool

	// Clock overrides the report timestamp source (tests).
	Clock func() time.Time
	// ReportID pins the report id (tests).
	ReportID string
}

// Engine applies dataset contracts resolved through a registry.
// Stateless beyond the registry reference; safe for concurrent use.
type Engine struct {
	reg *catalog.Registry
}

// NewEngine creates a contract application engine over a registry.
func NewEngine(reg *catalog.Registry) *Engine {
	return &Engine{reg: reg}
}

// Apply runs the full contract pipeline against a dataset:
//
//	load contract -> normalize -> validate required -> coerce ->
//	classify or drop unknowns -> finalize report
//
// The input dataset is cloned first and never modified. On success the
// transformed clone and the finalized report are returned; on failure
// the error carries the stage that rejected the run. There is no
// hidden state: equal inputs produce equal outputs (report id and
// timestamps aside).
func (e *Engine) Apply(ds *dataset.Dataset, id string, opts Options) (*dataset.Dataset, *lineage.SchemaReport, error) {
	c, err := e.reg.Load(id, opts.Version)
	if err != nil {
		return nil, nil, err
	}

	var recOpts []lineage.Option
	if opts.Clock != nil {
		recOpts = append(recOpts, lineage.WithClock(opts.Clock))
	}
	if opts.ReportID != "" {
		recOpts = append(recOpts, lineage.WithReportID(opts.ReportID))
	}
	rec := lineage.NewRecorder(id, opts.Track, recOpts...)

	out := ds.Clone()
	rowsBefore, colsBefore := out.NumRows(), out.NumColumns()

	unknown, err := Normalize(out, c, rec)
	if err != nil {
		return nil, nil, fmt.Errorf("normalizing dataset %q: %w", id, err)
	}

	if missing := MissingRequired(out, c); len(missing) > 0 {
		if opts.Strict {
			return nil, nil, NewRequiredMissingError(id, c.Version, missing)
		}
		rec.MissingRequired(missing)
		rec.Warn("%d required field(s) missing: continuing in lax mode", len(missing))
	}

	if opts.Cast {
		if err := e.coerceFields(out, c, rec); err != nil {
			return nil, nil, err
		}
	}

	for _, col := range unknown {
		if opts.DropUnknown {
			out.Drop(col)
			rec.Drop(col, "not owned by contract")
		} else {
			rec.Unknown(col)
		}
	}

	report := rec.Finalize(c.Version, c.Hash,
		rowsBefore, out.NumRows(), colsBefore, out.NumColumns())
	return out, report, nil
}

// coerceFields coerces every contract-owned column present in the
// dataset, in field declaration order.
func (e *Engine) coerceFields(ds *dataset.Dataset, c *contract.DatasetContract, rec *lineage.Recorder) error {
	for i := range c.Fields {
		field := &c.Fields[i]
		values, ok := ds.Column(field.Name)
		if !ok {
			continue
		}

		before := observedType(values)
		res, err := CoerceColumn(values, field)
		if err != nil {
			var ae *ApplyError
			if errors.As(err, &ae) {
				ae.DatasetID = c.ID
				ae.Version = c.Version
			}
			return err
		}

		if err := ds.SetColumn(field.Name, values); err != nil {
			return fmt.Errorf("writing back column %q: %w", field.Name, err)
		}

		// Record only when coercion or filling actually rewrote cells.
		// Re-applying a contract to its own output is then silent:
		// zero cast and fill events, same data.
		if res.Changed > 0 {
			rec.Cast(field.Name, before, string(field.DType), res.Invalid, res.Nulls)
		}
		if field.Fill == contract.FillFailOnNull && res.Nulls > 0 {
			return NewFailOnNullError(c.ID, c.Version, field.Name, res.Nulls)
		}
		if (field.Fill == contract.FillZero || field.Fill == contract.FillEmpty) && res.Filled > 0 {
			rec.Fill(field.Name, string(field.Fill), res.Filled)
		}
	}
	return nil
}

// observedType summarizes the pre-coercion cell types of a column for
// the cast event's before label.
func observedType(values []contract.Value) string {
	seen := ""
	for _, v := range values {
		var t string
		switch v.(type) {
		case contract.Null:
			continue
		case contract.String:
			t = "string"
		case contract.Float:
			t = "float"
		case contract.Int:
			t = "int"
		case contract.Bool:
			t = "bool"
		}
		if seen == "" {
			seen = t
		} else if seen != t {
			return "mixed"
		}
	}
	if seen == "" {
		return "null"
	}
	return seen
}
