package schema

import (
	"github.com/gvern/SOXauto-sub001/internal/contract"
	"github.com/gvern/SOXauto-sub001/internal/dataset"
	"github.com/gvern/SOXauto-sub001/internal/lineage"
)

// Normalize renames raw dataset columns to their canonical contract
// names, mutating ds in place, and returns the columns the contract
// does not own.
//
// Fields are processed in contract declaration order. Each field
// searches its candidate list (canonical name first, then aliases in
// declared order); the first candidate present in the dataset and not
// yet consumed by an earlier field wins and is renamed to the
// canonical name. Remaining candidates of the same field are left
// alone, so a dataset carrying both an alias and the canonical name
// keeps the canonical one and the alias falls through as unknown.
//
// Normalization is idempotent: a second pass over its own output
// matches every field on the canonical name and records no renames.
func Normalize(ds *dataset.Dataset, c *contract.DatasetContract, rec *lineage.Recorder) ([]string, error) {
	consumed := make(map[string]bool, len(c.Fields))

	for i := range c.Fields {
		field := &c.Fields[i]
		for _, candidate := range field.Candidates() {
			if consumed[candidate] || !ds.HasColumn(candidate) {
				continue
			}
			if candidate != field.Name {
				if err := ds.Rename(candidate, field.Name); err != nil {
					return nil, err
				}
				rec.Rename(candidate, field.Name, candidate)
			}
			consumed[field.Name] = true
			break
		}
	}

	var unknown []string
	for _, col := range ds.Columns() {
		if !consumed[col] {
			unknown = append(unknown, col)
		}
	}
	return unknown, nil
}
