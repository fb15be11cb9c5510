package dataset

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// yamlDoc is the on-disk shape used by the CLI and test fixtures:
//
//	columns: ["Customer No_", "rem_amt_LCY"]
//	rows:
//	  - ["C0001", "1,234.56"]
//	  - ["C0002", ""]
//
// Rows are positional and must match the column count. Scalar cells
// only; a null cell is written as ~.
type yamlDoc struct {
	Columns []string `yaml:"columns"`
	Rows    [][]any  `yaml:"rows"`
}

// FromYAML decodes a dataset document.
func FromYAML(data []byte) (*Dataset, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	if len(doc.Columns) == 0 {
		return nil, fmt.Errorf("dataset document declares no columns")
	}

	cols := make(map[string][]contract.Value, len(doc.Columns))
	for _, name := range doc.Columns {
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("duplicate column %q in dataset document", name)
		}
		cols[name] = make([]contract.Value, 0, len(doc.Rows))
	}

	for i, row := range doc.Rows {
		if len(row) != len(doc.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(doc.Columns))
		}
		for j, raw := range row {
			v, err := contract.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", i, doc.Columns[j], err)
			}
			cols[doc.Columns[j]] = append(cols[doc.Columns[j]], v)
		}
	}

	d := New()
	for _, name := range doc.Columns {
		if err := d.SetColumn(name, cols[name]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ToYAML encodes a dataset back to the document form, preserving
// column order.
func (d *Dataset) ToYAML() ([]byte, error) {
	doc := yamlDoc{Columns: d.Columns()}
	doc.Rows = make([][]any, d.rows)
	for i := 0; i < d.rows; i++ {
		row := make([]any, len(d.columns))
		for j, c := range d.columns {
			row[j] = cellToAny(d.cells[c][i])
		}
		doc.Rows[i] = row
	}
	return yaml.Marshal(doc)
}

func cellToAny(v contract.Value) any {
	switch val := v.(type) {
	case contract.Null:
		return nil
	case contract.String:
		return string(val)
	case contract.Float:
		return float64(val)
	case contract.Int:
		return int64(val)
	case contract.Bool:
		return bool(val)
	default:
		return contract.ValueString(v)
	}
}
