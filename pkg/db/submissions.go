package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SubmissionStore manages submissions and their element values.
type SubmissionStore struct {
	conn *Connection
}

// NewSubmissionStore creates a new SubmissionStore instance.
func NewSubmissionStore(conn *Connection) *SubmissionStore {
	return &SubmissionStore{conn: conn}
}

// Transaction runs fn inside a database transaction.
func (s *SubmissionStore) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.conn.Transaction(ctx, fn)
}

// EnsureSubmission returns the submission for (organization, year), creating a draft
// if none exists yet.
func (s *SubmissionStore) EnsureSubmission(ctx context.Context, organizationID int64, year int, taxonomyVersion string) (*Submission, error) {
	_, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO submissions (organization_id, year, status, taxonomy_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(organization_id, year) DO NOTHING
	`, organizationID, year, StatusDraft, taxonomyVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure submission: %w", err)
	}

	return s.GetSubmission(ctx, organizationID, year)
}

// GetSubmission retrieves the submission of an organization for a year.
// Returns ErrNotFound if there is none.
func (s *SubmissionStore) GetSubmission(ctx context.Context, organizationID int64, year int) (*Submission, error) {
	return s.scanSubmission(s.conn.db.QueryRowContext(ctx, `
		SELECT id, organization_id, year, status, taxonomy_version, created_at
		FROM submissions
		WHERE organization_id = ? AND year = ?
	`, organizationID, year))
}

// GetSubmissionByID retrieves a submission by ID.
func (s *SubmissionStore) GetSubmissionByID(ctx context.Context, id int64) (*Submission, error) {
	return s.scanSubmission(s.conn.db.QueryRowContext(ctx, `
		SELECT id, organization_id, year, status, taxonomy_version, created_at
		FROM submissions
		WHERE id = ?
	`, id))
}

func (s *SubmissionStore) scanSubmission(row *sql.Row) (*Submission, error) {
	var sub Submission
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.Year, &sub.Status, &sub.TaxonomyVersion, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

// UpdateStatus sets the workflow status of a submission.
func (s *SubmissionStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	result, err := s.conn.db.ExecContext(ctx, `UPDATE submissions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSubmission deletes a submission together with all its values.
func (s *SubmissionStore) DeleteSubmission(ctx context.Context, id int64) error {
	if _, err := s.conn.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return nil
}

// ListValues retrieves all values of a submission ordered by element name.
func (s *SubmissionStore) ListValues(ctx context.Context, submissionID int64) ([]SubmissionValue, error) {
	return s.ListValuesTx(ctx, s.conn.db, submissionID)
}

// ListValuesTx is ListValues against an explicit querier, typically a transaction.
func (s *SubmissionStore) ListValuesTx(ctx context.Context, q Querier, submissionID int64) ([]SubmissionValue, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, submission_id, element_name, value, source, overridden, confirmed_at, metadata, updated_at
		FROM submission_values
		WHERE submission_id = ?
		ORDER BY element_name
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission values: %w", err)
	}
	defer rows.Close()

	var values []SubmissionValue
	for rows.Next() {
		var v SubmissionValue
		var source, metadata string
		if err := rows.Scan(&v.ID, &v.SubmissionID, &v.ElementName, &v.Value, &source,
			&v.Overridden, &v.ConfirmedAt, &metadata, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission value: %w", err)
		}
		v.Source = Source(source)
		if err := json.Unmarshal([]byte(metadata), &v.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", v.ElementName, err)
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// GetValue retrieves a single stored value.
func (s *SubmissionStore) GetValue(ctx context.Context, submissionID int64, elementName string) (*SubmissionValue, error) {
	values, err := s.ListValues(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	for i := range values {
		if values[i].ElementName == elementName {
			return &values[i], nil
		}
	}
	return nil, ErrNotFound
}

// InsertValue inserts a new submission value.
func (s *SubmissionStore) InsertValue(ctx context.Context, q Querier, v SubmissionValue) error {
	metadata, err := encodeMetadata(v.Metadata)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO submission_values (submission_id, element_name, value, source, overridden, confirmed_at, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, v.SubmissionID, v.ElementName, v.Value, string(v.Source), v.Overridden, v.ConfirmedAt, metadata, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert value %s: %w", v.ElementName, err)
	}
	return nil
}

// UpdateValue replaces value, source and metadata of an existing row. Lock columns
// (overridden, confirmed_at) are left as stored.
func (s *SubmissionStore) UpdateValue(ctx context.Context, q Querier, v SubmissionValue) error {
	metadata, err := encodeMetadata(v.Metadata)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		UPDATE submission_values
		SET value = ?, source = ?, metadata = ?, updated_at = ?
		WHERE submission_id = ? AND element_name = ?
	`, v.Value, string(v.Source), metadata, time.Now().UTC(), v.SubmissionID, v.ElementName)
	if err != nil {
		return fmt.Errorf("failed to update value %s: %w", v.ElementName, err)
	}
	return nil
}

// SetManualValue records a human edit. Editing a calculated value keeps its source and
// marks it overridden; anything else becomes a manual value.
func (s *SubmissionStore) SetManualValue(ctx context.Context, submissionID int64, elementName, value string) error {
	return s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		var source string
		err := tx.QueryRowContext(ctx,
			`SELECT source FROM submission_values WHERE submission_id = ? AND element_name = ?`,
			submissionID, elementName,
		).Scan(&source)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			return s.InsertValue(ctx, tx, SubmissionValue{
				SubmissionID: submissionID,
				ElementName:  elementName,
				Value:        value,
				Source:       SourceManual,
			})
		case err != nil:
			return fmt.Errorf("failed to read value %s: %w", elementName, err)
		}

		query := `UPDATE submission_values SET value = ?, source = ?, updated_at = ? WHERE submission_id = ? AND element_name = ?`
		args := []any{value, SourceManual, time.Now().UTC(), submissionID, elementName}
		if Source(source) == SourceCalculated {
			query = `UPDATE submission_values SET value = ?, overridden = 1, updated_at = ? WHERE submission_id = ? AND element_name = ?`
			args = []any{value, time.Now().UTC(), submissionID, elementName}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to set manual value %s: %w", elementName, err)
		}
		return nil
	})
}

// ConfirmValue marks a from-settings value as confirmed by a human.
func (s *SubmissionStore) ConfirmValue(ctx context.Context, submissionID int64, elementName string, at time.Time) error {
	result, err := s.conn.db.ExecContext(ctx, `
		UPDATE submission_values SET confirmed_at = ?
		WHERE submission_id = ? AND element_name = ? AND source = ?
	`, at.UTC(), submissionID, elementName, string(SourceFromSettings))
	if err != nil {
		return fmt.Errorf("failed to confirm value %s: %w", elementName, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}
