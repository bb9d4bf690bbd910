package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReportDocument is a generated instance document written to disk.
type ReportDocument struct {
	ID           int64
	SubmissionID int64
	DocumentPath string
	FactCount    int
	SHA256       string
	GeneratedAt  time.Time
}

// ValidationRun is one call to the external validation service.
type ValidationRun struct {
	ID           int64
	SubmissionID int64
	RequestID    string
	Valid        bool
	ErrorCount   int
	WarningCount int
	Summary      string
	ValidatedAt  time.Time
}

// ReportHistory tracks generated documents, validation runs and run metadata.
type ReportHistory struct {
	conn *Connection
}

// NewReportHistory creates a new ReportHistory instance.
func NewReportHistory(conn *Connection) *ReportHistory {
	return &ReportHistory{conn: conn}
}

// RecordDocument records a generated document.
// If the same file was already recorded for the submission, it updates it.
func (h *ReportHistory) RecordDocument(ctx context.Context, doc ReportDocument) error {
	_, err := h.conn.db.ExecContext(ctx, `
		INSERT INTO report_documents (submission_id, document_path, fact_count, sha256)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(submission_id, document_path) DO UPDATE SET
			fact_count = excluded.fact_count,
			sha256 = excluded.sha256,
			generated_at = CURRENT_TIMESTAMP
	`, doc.SubmissionID, doc.DocumentPath, doc.FactCount, doc.SHA256)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// ListDocuments retrieves the documents generated for a submission, newest first.
func (h *ReportHistory) ListDocuments(ctx context.Context, submissionID int64) ([]ReportDocument, error) {
	rows, err := h.conn.db.QueryContext(ctx, `
		SELECT id, submission_id, document_path, fact_count, sha256, generated_at
		FROM report_documents
		WHERE submission_id = ?
		ORDER BY generated_at DESC, id DESC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []ReportDocument
	for rows.Next() {
		var doc ReportDocument
		if err := rows.Scan(&doc.ID, &doc.SubmissionID, &doc.DocumentPath,
			&doc.FactCount, &doc.SHA256, &doc.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// RecordValidation records the outcome of a validation call.
func (h *ReportHistory) RecordValidation(ctx context.Context, run ValidationRun) error {
	summary := run.Summary
	if summary == "" {
		summary = "{}"
	}

	_, err := h.conn.db.ExecContext(ctx, `
		INSERT INTO validation_runs (submission_id, request_id, valid, error_count, warning_count, summary)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.SubmissionID, run.RequestID, run.Valid, run.ErrorCount, run.WarningCount, summary)
	if err != nil {
		return fmt.Errorf("failed to record validation run: %w", err)
	}
	return nil
}

// LatestValidation returns the most recent validation run of a submission.
// Returns ErrNotFound if the submission was never validated.
func (h *ReportHistory) LatestValidation(ctx context.Context, submissionID int64) (*ValidationRun, error) {
	var run ValidationRun
	err := h.conn.db.QueryRowContext(ctx, `
		SELECT id, submission_id, request_id, valid, error_count, warning_count, summary, validated_at
		FROM validation_runs
		WHERE submission_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, submissionID).Scan(&run.ID, &run.SubmissionID, &run.RequestID, &run.Valid,
		&run.ErrorCount, &run.WarningCount, &run.Summary, &run.ValidatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation run: %w", err)
	}
	return &run, nil
}

// GetMetadata retrieves a metadata value. A missing key yields an empty string.
func (h *ReportHistory) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := h.conn.db.QueryRowContext(ctx, `SELECT value FROM report_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}
	return value, nil
}

// SetMetadata sets a metadata value.
func (h *ReportHistory) SetMetadata(ctx context.Context, key, value string) error {
	_, err := h.conn.db.ExecContext(ctx, `
		INSERT INTO report_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}
