// Package db provides SQLite storage for business records, submissions and
// their element values.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Reporting entities
CREATE TABLE IF NOT EXISTS organizations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    registration_id TEXT NOT NULL UNIQUE
);

-- Organization configuration; rows with xbrl_element are copied into submissions
CREATE TABLE IF NOT EXISTS organization_settings (
    organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    xbrl_element TEXT,
    PRIMARY KEY (organization_id, key)
);

CREATE TABLE IF NOT EXISTS clients (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    client_type TEXT NOT NULL,         -- 'natural_person', 'legal_entity' or 'trust'
    nationality TEXT,                  -- natural persons, free text
    incorporation_country TEXT,        -- legal entities and trusts, free text
    is_pep INTEGER NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL DEFAULT 'low',
    onboarded_on TEXT NOT NULL,        -- YYYY-MM-DD
    discarded_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_clients_org
    ON clients(organization_id);

CREATE TABLE IF NOT EXISTS beneficial_owners (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    nationality TEXT,
    is_pep INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    client_id INTEGER REFERENCES clients(id) ON DELETE SET NULL,
    transaction_type TEXT NOT NULL,    -- 'purchase', 'sale' or 'rental'
    transaction_date TEXT NOT NULL,    -- YYYY-MM-DD
    amount_cents INTEGER NOT NULL,     -- EUR cents
    payment_method TEXT NOT NULL,      -- 'wire', 'cheque', 'cash', 'crypto' or 'mixed'
    cash_amount_cents INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_org_date
    ON transactions(organization_id, transaction_date);

CREATE TABLE IF NOT EXISTS str_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    report_date TEXT NOT NULL          -- YYYY-MM-DD
);

CREATE TABLE IF NOT EXISTS trainings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    training_date TEXT NOT NULL,       -- YYYY-MM-DD
    staff_count INTEGER NOT NULL DEFAULT 0
);

-- Yearly survey submissions
CREATE TABLE IF NOT EXISTS submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    taxonomy_version TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(organization_id, year)
);

-- One stored value per (submission, element)
CREATE TABLE IF NOT EXISTS submission_values (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    element_name TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,              -- 'calculated', 'from_settings' or 'manual'
    overridden INTEGER NOT NULL DEFAULT 0,
    confirmed_at TIMESTAMP,
    metadata TEXT NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(submission_id, element_name)
);

CREATE INDEX IF NOT EXISTS idx_submission_values_submission
    ON submission_values(submission_id);

-- Generated instance documents
-- One row per written file; regenerating the same file updates it
CREATE TABLE IF NOT EXISTS report_documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    document_path TEXT NOT NULL,
    fact_count INTEGER NOT NULL DEFAULT 0,
    sha256 TEXT NOT NULL,
    generated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(submission_id, document_path)
);

-- External validation runs
CREATE TABLE IF NOT EXISTS validation_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    request_id TEXT NOT NULL,
    valid INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    warning_count INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '{}',   -- JSON-encoded validation result
    validated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_validation_runs_submission
    ON validation_runs(submission_id);

-- Key-value metadata about report runs
CREATE TABLE IF NOT EXISTS report_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
