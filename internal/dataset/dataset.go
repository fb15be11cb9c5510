// Package dataset provides the in-memory tabular value the contract
// engine operates on.
//
// Storage is column-major: normalization renames whole columns and
// coercion rewrites whole columns, so columns are the unit of work.
// The column order is explicit and preserved across operations -
// downstream evidence artifacts list columns in a stable order.
package dataset

import (
	"fmt"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// Dataset is an ordered collection of equal-length columns.
//
// A Dataset is NOT safe for concurrent mutation. The contract engine
// clones its input before transforming, so callers keep an untouched
// original.
type Dataset struct {
	columns []string
	cells   map[string][]contract.Value
	rows    int
}

// New creates an empty dataset with zero columns and rows.
func New() *Dataset {
	return &Dataset{cells: make(map[string][]contract.Value)}
}

// Columns returns the ordered column names. The returned slice is a
// copy; mutating it does not affect the dataset.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	return d.rows
}

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

// HasColumn reports whether a column with the given name exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.cells[name]
	return ok
}

// Column returns the cell values of the named column.
// The returned slice is the backing storage; callers that mutate it
// must go through SetColumn instead.
func (d *Dataset) Column(name string) ([]contract.Value, bool) {
	vals, ok := d.cells[name]
	return vals, ok
}

// SetColumn adds or replaces a column. A new column is appended to the
// column order. Length must match the existing row count unless the
// dataset is still empty.
func (d *Dataset) SetColumn(name string, values []contract.Value) error {
	if len(d.columns) > 0 && len(values) != d.rows {
		return fmt.Errorf("column %q has %d values, dataset has %d rows", name, len(values), d.rows)
	}
	if _, exists := d.cells[name]; !exists {
		d.columns = append(d.columns, name)
	}
	if len(d.columns) == 1 {
		d.rows = len(values)
	}
	d.cells[name] = values
	return nil
}

// Rename changes a column's name in place, preserving its position in
// the column order. Fails if the source is missing or the target
// already exists.
func (d *Dataset) Rename(from, to string) error {
	if from == to {
		return nil
	}
	vals, ok := d.cells[from]
	if !ok {
		return fmt.Errorf("column %q not found", from)
	}
	if _, exists := d.cells[to]; exists {
		return fmt.Errorf("column %q already exists", to)
	}
	for i, c := range d.columns {
		if c == from {
			d.columns[i] = to
			break
		}
	}
	delete(d.cells, from)
	d.cells[to] = vals
	return nil
}

// Drop removes a column. Dropping a missing column is a no-op.
func (d *Dataset) Drop(name string) {
	if _, ok := d.cells[name]; !ok {
		return
	}
	delete(d.cells, name)
	for i, c := range d.columns {
		if c == name {
			d.columns = append(d.columns[:i], d.columns[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy sharing no storage with the original.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: make([]string, len(d.columns)),
		cells:   make(map[string][]contract.Value, len(d.cells)),
		rows:    d.rows,
	}
	copy(out.columns, d.columns)
	for name, vals := range d.cells {
		cp := make([]contract.Value, len(vals))
		copy(cp, vals)
		out.cells[name] = cp
	}
	return out
}

// Row returns one row as a name->value map, in no particular order.
// Intended for tests and serialization, not hot paths.
func (d *Dataset) Row(i int) (map[string]contract.Value, error) {
	if i < 0 || i >= d.rows {
		return nil, fmt.Errorf("row %d out of range (%d rows)", i, d.rows)
	}
	row := make(map[string]contract.Value, len(d.columns))
	for _, c := range d.columns {
		row[c] = d.cells[c][i]
	}
	return row, nil
}
