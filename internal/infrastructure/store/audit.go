package store

import (
	"context"
	"fmt"

	"github.com/nutritrack/backend/internal/domain"
)

// Record appends one match decision to the audit trail. Every
// dispositioned record lands here regardless of tier or outcome, so a
// run can be replayed or reviewed after the fact.
func (s *Store) Record(ctx context.Context, runID string, record domain.ExternalRecord, result domain.MatchResult, outcome domain.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_audit (
			run_id, source, record_name, record_manufacturer,
			barcode, product_id, score, tier, outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(record.Source), record.Name, record.Manufacturer,
		result.Barcode, result.ProductID, result.Score, string(result.Tier), string(outcome))
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// AuditEntry is one row of the match audit trail.
type AuditEntry struct {
	ID                 int64          `json:"id"`
	RunID              string         `json:"runId"`
	Source             domain.Source  `json:"source"`
	RecordName         string         `json:"recordName"`
	RecordManufacturer string         `json:"recordManufacturer"`
	Barcode            string         `json:"barcode"`
	ProductID          int64          `json:"productId"`
	Score              float64        `json:"score"`
	Tier               domain.Tier    `json:"tier"`
	Outcome            domain.Outcome `json:"outcome"`
}

// AuditByRun returns the audit trail for one reconciliation run in
// insertion order.
func (s *Store) AuditByRun(ctx context.Context, runID string, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, source, record_name, record_manufacturer,
			barcode, product_id, score, tier, outcome
		FROM match_audit
		WHERE run_id = ?
		ORDER BY id
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Source, &e.RecordName, &e.RecordManufacturer,
			&e.Barcode, &e.ProductID, &e.Score, &e.Tier, &e.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
