package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gvern/SOXauto-sub001/internal/contract"
	"github.com/gvern/SOXauto-sub001/internal/lineage"
	"github.com/gvern/SOXauto-sub001/internal/threshold"
)

// WriteReport inserts a schema report into the store.
// Uses ON CONFLICT(report_id) DO NOTHING for idempotency - re-running
// a pipeline with a pinned report id never duplicates evidence.
//
// The full report document is stored as JSON alongside the queryable
// identity and shape columns.
func (s *Store) WriteReport(ctx context.Context, r *lineage.SchemaReport) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schema_reports
		(report_id, dataset_id, contract_version, contract_hash, created_at,
		 rows_before, rows_after, columns_before, columns_after, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO NOTHING
	`,
		r.ReportID,
		r.DatasetID,
		r.ContractVersion,
		r.ContractHash,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.RowsBefore,
		r.RowsAfter,
		r.ColumnsBefore,
		r.ColumnsAfter,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// WriteResolution appends one threshold resolution with the query that
// produced it. Resolutions are not deduplicated: the evidence trail
// records every lookup, including repeats.
func (s *Store) WriteResolution(ctx context.Context, q threshold.Query, res *contract.ResolvedThreshold, resolvedAt time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO threshold_resolutions
		(country, threshold_type, gl_account, category, voucher_type,
		 value, source, contract_version, contract_hash, rule_description,
		 specificity, matched_rules, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.Country,
		string(res.Type),
		q.GLAccount,
		q.Category,
		q.VoucherType,
		res.Value,
		string(res.Source),
		res.ContractVersion,
		res.ContractHash,
		res.RuleDescription,
		res.Specificity,
		res.MatchedRules,
		resolvedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("write resolution: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write resolution: last insert id: %w", err)
	}
	return id, nil
}
