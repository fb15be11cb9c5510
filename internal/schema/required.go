package schema

import (
	"github.com/gvern/SOXauto-sub001/internal/contract"
	"github.com/gvern/SOXauto-sub001/internal/dataset"
)

// MissingRequired returns the required canonical fields that cannot be
// satisfied by the dataset: neither the canonical name nor any alias
// is present. Pure inspection; the dataset is never modified.
//
// When run after Normalize the alias cases are already folded in;
// the function still checks the full candidate list so it gives
// correct answers on raw, un-normalized datasets too.
func MissingRequired(ds *dataset.Dataset, c *contract.DatasetContract) []string {
	var missing []string
	for i := range c.Fields {
		field := &c.Fields[i]
		if !field.Required {
			continue
		}
		found := false
		for _, candidate := range field.Candidates() {
			if ds.HasColumn(candidate) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, field.Name)
		}
	}
	return missing
}
