package db

import (
	"context"
	"fmt"
)

// RecordStore reads and writes the business records the survey is computed from.
// The write methods exist for seeding and tests; record maintenance itself is owned
// by the back-office application.
type RecordStore struct {
	conn *Connection
}

// NewRecordStore creates a new RecordStore instance.
func NewRecordStore(conn *Connection) *RecordStore {
	return &RecordStore{conn: conn}
}

// AddClient inserts a client and returns its ID.
func (s *RecordStore) AddClient(ctx context.Context, c Client) (int64, error) {
	result, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO clients (organization_id, client_type, nationality, incorporation_country,
			is_pep, risk_level, onboarded_on, discarded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.OrganizationID, c.ClientType, c.Nationality, c.IncorporationCountry,
		c.IsPEP, defaultString(c.RiskLevel, "low"), c.OnboardedOn, c.DiscardedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to add client: %w", err)
	}
	return result.LastInsertId()
}

// AddBeneficialOwner inserts a beneficial owner and returns its ID.
func (s *RecordStore) AddBeneficialOwner(ctx context.Context, bo BeneficialOwner) (int64, error) {
	result, err := s.conn.db.ExecContext(ctx,
		`INSERT INTO beneficial_owners (client_id, nationality, is_pep) VALUES (?, ?, ?)`,
		bo.ClientID, bo.Nationality, bo.IsPEP,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add beneficial owner: %w", err)
	}
	return result.LastInsertId()
}

// AddTransaction inserts a transaction and returns its ID.
func (s *RecordStore) AddTransaction(ctx context.Context, t Transaction) (int64, error) {
	result, err := s.conn.db.ExecContext(ctx, `
		INSERT INTO transactions (organization_id, client_id, transaction_type, transaction_date,
			amount_cents, payment_method, cash_amount_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.OrganizationID, t.ClientID, t.TransactionType, t.TransactionDate,
		t.AmountCents, t.PaymentMethod, t.CashAmountCents)
	if err != nil {
		return 0, fmt.Errorf("failed to add transaction: %w", err)
	}
	return result.LastInsertId()
}

// AddSTRReport records a suspicious transaction report filed on the given date.
func (s *RecordStore) AddSTRReport(ctx context.Context, organizationID int64, reportDate string) error {
	_, err := s.conn.db.ExecContext(ctx,
		`INSERT INTO str_reports (organization_id, report_date) VALUES (?, ?)`,
		organizationID, reportDate,
	)
	if err != nil {
		return fmt.Errorf("failed to add STR report: %w", err)
	}
	return nil
}

// AddTraining inserts a training session.
func (s *RecordStore) AddTraining(ctx context.Context, t Training) error {
	_, err := s.conn.db.ExecContext(ctx,
		`INSERT INTO trainings (organization_id, training_date, staff_count) VALUES (?, ?, ?)`,
		t.OrganizationID, t.TrainingDate, t.StaffCount,
	)
	if err != nil {
		return fmt.Errorf("failed to add training: %w", err)
	}
	return nil
}

// ListKeptClients returns clients onboarded on or before asOf (YYYY-MM-DD) that have
// not been discarded.
func (s *RecordStore) ListKeptClients(ctx context.Context, organizationID int64, asOf string) ([]Client, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT id, organization_id, client_type, COALESCE(nationality, ''),
			COALESCE(incorporation_country, ''), is_pep, risk_level, onboarded_on, discarded_at
		FROM clients
		WHERE organization_id = ? AND onboarded_on <= ? AND discarded_at IS NULL
		ORDER BY id
	`, organizationID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.ClientType, &c.Nationality,
			&c.IncorporationCountry, &c.IsPEP, &c.RiskLevel, &c.OnboardedOn, &c.DiscardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}

	return clients, rows.Err()
}

// ListBeneficialOwners returns the beneficial owners of kept legal-entity and trust clients.
func (s *RecordStore) ListBeneficialOwners(ctx context.Context, organizationID int64, asOf string) ([]BeneficialOwner, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT bo.id, bo.client_id, COALESCE(bo.nationality, ''), bo.is_pep
		FROM beneficial_owners bo
		JOIN clients c ON c.id = bo.client_id
		WHERE c.organization_id = ?
			AND c.client_type IN (?, ?)
			AND c.onboarded_on <= ?
			AND c.discarded_at IS NULL
		ORDER BY bo.id
	`, organizationID, ClientLegalEntity, ClientTrust, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficial owners: %w", err)
	}
	defer rows.Close()

	var owners []BeneficialOwner
	for rows.Next() {
		var bo BeneficialOwner
		if err := rows.Scan(&bo.ID, &bo.ClientID, &bo.Nationality, &bo.IsPEP); err != nil {
			return nil, fmt.Errorf("failed to scan beneficial owner: %w", err)
		}
		owners = append(owners, bo)
	}

	return owners, rows.Err()
}

// ListTransactions returns transactions dated within [from, to] (YYYY-MM-DD, inclusive).
func (s *RecordStore) ListTransactions(ctx context.Context, organizationID int64, from, to string) ([]Transaction, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT id, organization_id, client_id, transaction_type, transaction_date,
			amount_cents, payment_method, cash_amount_cents
		FROM transactions
		WHERE organization_id = ? AND transaction_date BETWEEN ? AND ?
		ORDER BY transaction_date, id
	`, organizationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.ClientID, &t.TransactionType,
			&t.TransactionDate, &t.AmountCents, &t.PaymentMethod, &t.CashAmountCents); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}

	return txns, rows.Err()
}

// CountSTRReports counts suspicious transaction reports filed within [from, to].
func (s *RecordStore) CountSTRReports(ctx context.Context, organizationID int64, from, to string) (int, error) {
	var count int
	err := s.conn.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM str_reports
		WHERE organization_id = ? AND report_date BETWEEN ? AND ?
	`, organizationID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count STR reports: %w", err)
	}
	return count, nil
}

// ListTrainings returns training sessions held within [from, to].
func (s *RecordStore) ListTrainings(ctx context.Context, organizationID int64, from, to string) ([]Training, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT id, organization_id, training_date, staff_count
		FROM trainings
		WHERE organization_id = ? AND training_date BETWEEN ? AND ?
		ORDER BY training_date, id
	`, organizationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list trainings: %w", err)
	}
	defer rows.Close()

	var trainings []Training
	for rows.Next() {
		var t Training
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.TrainingDate, &t.StaffCount); err != nil {
			return nil, fmt.Errorf("failed to scan training: %w", err)
		}
		trainings = append(trainings, t)
	}

	return trainings, rows.Err()
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
