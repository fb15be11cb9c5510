package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ResolutionFilter narrows a resolution query. Zero-value fields are
// ignored; combining fields ANDs the predicates.
type ResolutionFilter struct {
	Country        string
	Type           string
	Source         string
	GLAccount      string
	MinSpecificity int
	Since          time.Time
}

// compile builds the parameterized WHERE and ORDER BY clauses.
// Values are always parameterized, never interpolated, and every query
// carries a deterministic ORDER BY so repeated evidence pulls agree.
func (f *ResolutionFilter) compile() (string, []any) {
	var clauses []string
	var params []any

	if f.Country != "" {
		clauses = append(clauses, "country = ?")
		params = append(params, f.Country)
	}
	if f.Type != "" {
		clauses = append(clauses, "threshold_type = ?")
		params = append(params, f.Type)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		params = append(params, f.Source)
	}
	if f.GLAccount != "" {
		clauses = append(clauses, "gl_account = ?")
		params = append(params, f.GLAccount)
	}
	if f.MinSpecificity > 0 {
		clauses = append(clauses, "specificity >= ?")
		params = append(params, f.MinSpecificity)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "resolved_at >= ?")
		params = append(params, f.Since.UTC().Format(time.RFC3339Nano))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	return where + " ORDER BY resolved_at ASC, id ASC", params
}

// QueryResolutions returns the resolutions matching a filter, oldest
// first.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryResolutions(ctx context.Context, f ResolutionFilter) ([]ResolutionRecord, error) {
	suffix, params := f.compile()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, country, threshold_type, gl_account, category, voucher_type,
		       value, source, contract_version, contract_hash, rule_description,
		       specificity, matched_rules, resolved_at
		FROM threshold_resolutions`+suffix, params...)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	records := []ResolutionRecord{}
	for rows.Next() {
		var rec ResolutionRecord
		var resolvedAt string
		if err := rows.Scan(
			&rec.ID, &rec.Country, &rec.Type, &rec.GLAccount, &rec.Category, &rec.VoucherType,
			&rec.Value, &rec.Source, &rec.ContractVersion, &rec.ContractHash, &rec.RuleDescription,
			&rec.Specificity, &rec.MatchedRules, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		rec.ResolvedAt, err = time.Parse(time.RFC3339Nano, resolvedAt)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}

	return records, nil
}
