package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gvern/SOXauto-sub001/internal/lineage"
)

// ResolutionRecord is one persisted threshold resolution with the
// query dimensions that produced it.
type ResolutionRecord struct {
	ID              int64     `json:"id"`
	Country         string    `json:"country"`
	Type            string    `json:"type"`
	GLAccount       string    `json:"gl_account,omitempty"`
	Category        string    `json:"category,omitempty"`
	VoucherType     string    `json:"voucher_type,omitempty"`
	Value           float64   `json:"value"`
	Source          string    `json:"source"`
	ContractVersion int       `json:"contract_version"`
	ContractHash    string    `json:"contract_hash"`
	RuleDescription string    `json:"rule_description"`
	Specificity     int       `json:"specificity"`
	MatchedRules    int       `json:"matched_rules"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// ReadReport retrieves a schema report by id, rehydrated from its
// stored JSON document. Returns sql.ErrNoRows if not found.
func (s *Store) ReadReport(ctx context.Context, reportID string) (*lineage.SchemaReport, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT report FROM schema_reports WHERE report_id = ?
	`, reportID).Scan(&doc)
	if err != nil {
		return nil, err
	}

	var report lineage.SchemaReport
	if err := json.Unmarshal([]byte(doc), &report); err != nil {
		return nil, fmt.Errorf("read report %s: %w", reportID, err)
	}
	return &report, nil
}

// ReadReportsForDataset returns every report recorded for a dataset,
// oldest first. Ordering is deterministic: created_at, then report_id.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadReportsForDataset(ctx context.Context, datasetID string) ([]*lineage.SchemaReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report FROM schema_reports
		WHERE dataset_id = ?
		ORDER BY created_at ASC, report_id COLLATE BINARY ASC
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []*lineage.SchemaReport{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var report lineage.SchemaReport
		if err := json.Unmarshal([]byte(doc), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, &report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// ReadResolutionsForCountry returns every threshold resolution served
// for a country, oldest first.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadResolutionsForCountry(ctx context.Context, country string) ([]ResolutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, country, threshold_type, gl_account, category, voucher_type,
		       value, source, contract_version, contract_hash, rule_description,
		       specificity, matched_rules, resolved_at
		FROM threshold_resolutions
		WHERE country = ?
		ORDER BY resolved_at ASC, id ASC
	`, country)
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

// CountFallbackResolutions returns how many resolutions were served by
// the hardcoded fallback. A rising count is the signal to extend the
// catalog.
func (s *Store) CountFallbackResolutions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM threshold_resolutions WHERE source = 'fallback'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fallback resolutions: %w", err)
	}
	return count, nil
}
