package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// OrganizationStore manages organizations and their settings.
type OrganizationStore struct {
	conn *Connection
}

// NewOrganizationStore creates a new OrganizationStore instance.
func NewOrganizationStore(conn *Connection) *OrganizationStore {
	return &OrganizationStore{conn: conn}
}

// CreateOrganization inserts an organization and returns it with its ID.
func (s *OrganizationStore) CreateOrganization(ctx context.Context, name, registrationID string) (*Organization, error) {
	result, err := s.conn.db.ExecContext(ctx,
		`INSERT INTO organizations (name, registration_id) VALUES (?, ?)`,
		name, registrationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get organization id: %w", err)
	}

	return &Organization{ID: id, Name: name, RegistrationID: registrationID}, nil
}

// GetOrganization retrieves an organization by ID.
func (s *OrganizationStore) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return s.getOrganization(ctx, `SELECT id, name, registration_id FROM organizations WHERE id = ?`, id)
}

// GetOrganizationByRegistrationID retrieves an organization by its registration identifier.
func (s *OrganizationStore) GetOrganizationByRegistrationID(ctx context.Context, registrationID string) (*Organization, error) {
	return s.getOrganization(ctx, `SELECT id, name, registration_id FROM organizations WHERE registration_id = ?`, registrationID)
}

func (s *OrganizationStore) getOrganization(ctx context.Context, query string, arg any) (*Organization, error) {
	var org Organization
	err := s.conn.db.QueryRowContext(ctx, query, arg).Scan(&org.ID, &org.Name, &org.RegistrationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// PutSetting creates or replaces an organization setting.
func (s *OrganizationStore) PutSetting(ctx context.Context, setting Setting) error {
	query := `
		INSERT INTO organization_settings (organization_id, key, value, xbrl_element)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(organization_id, key) DO UPDATE SET
			value = excluded.value,
			xbrl_element = excluded.xbrl_element
	`

	var element sql.NullString
	if setting.XBRLElement != "" {
		element = sql.NullString{String: setting.XBRLElement, Valid: true}
	}

	if _, err := s.conn.db.ExecContext(ctx, query, setting.OrganizationID, setting.Key, setting.Value, element); err != nil {
		return fmt.Errorf("failed to put setting %s: %w", setting.Key, err)
	}
	return nil
}

// ListSettings retrieves all settings of an organization ordered by key.
func (s *OrganizationStore) ListSettings(ctx context.Context, organizationID int64) ([]Setting, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT organization_id, key, value, xbrl_element
		FROM organization_settings
		WHERE organization_id = ?
		ORDER BY key
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var setting Setting
		var element sql.NullString
		if err := rows.Scan(&setting.OrganizationID, &setting.Key, &setting.Value, &element); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		setting.XBRLElement = element.String
		settings = append(settings, setting)
	}

	return settings, rows.Err()
}
