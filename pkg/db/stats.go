package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Stats represents storage statistics for one organization.
type Stats struct {
	TotalSubmissions int
	TotalValues      int
	ValuesBySource   map[Source]int
	OverriddenValues int
	ConfirmedValues  int
	TotalDocuments   int
	TotalValidations int
	LastUpdate       sql.NullString
}

// GetStats retrieves submission statistics for an organization.
func (s *SubmissionStore) GetStats(ctx context.Context, organizationID int64) (*Stats, error) {
	stats := Stats{ValuesBySource: make(map[Source]int)}

	err := s.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE organization_id = ?`, organizationID,
	).Scan(&stats.TotalSubmissions)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission count: %w", err)
	}

	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT v.source, COUNT(*), SUM(v.overridden), SUM(CASE WHEN v.confirmed_at IS NULL THEN 0 ELSE 1 END)
		FROM submission_values v
		JOIN submissions s ON s.id = v.submission_id
		WHERE s.organization_id = ?
		GROUP BY v.source
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get value counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count, overridden, confirmed int
		if err := rows.Scan(&source, &count, &overridden, &confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan value counts: %w", err)
		}
		stats.ValuesBySource[Source(source)] = count
		stats.TotalValues += count
		stats.OverriddenValues += overridden
		stats.ConfirmedValues += confirmed
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.conn.db.QueryRowContext(ctx, `
		SELECT MAX(v.updated_at)
		FROM submission_values v
		JOIN submissions s ON s.id = v.submission_id
		WHERE s.organization_id = ?
	`, organizationID).Scan(&stats.LastUpdate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last update time: %w", err)
	}

	err = s.conn.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM report_documents d JOIN submissions s ON s.id = d.submission_id WHERE s.organization_id = ?),
			(SELECT COUNT(*) FROM validation_runs r JOIN submissions s ON s.id = r.submission_id WHERE s.organization_id = ?)
	`, organizationID, organizationID).Scan(&stats.TotalDocuments, &stats.TotalValidations)
	if err != nil {
		return nil, fmt.Errorf("failed to get run counts: %w", err)
	}

	return &stats, nil
}
