package db

import (
	"database/sql"
	"time"
)

// Source records who wrote a submission value.
type Source string

const (
	SourceCalculated   Source = "calculated"
	SourceFromSettings Source = "from_settings"
	SourceManual       Source = "manual"
)

// Client types.
const (
	ClientNaturalPerson = "natural_person"
	ClientLegalEntity   = "legal_entity"
	ClientTrust         = "trust"
)

// Transaction types.
const (
	TransactionPurchase = "purchase"
	TransactionSale     = "sale"
	TransactionRental   = "rental"
)

// Payment methods.
const (
	PaymentWire   = "wire"
	PaymentCheque = "cheque"
	PaymentCash   = "cash"
	PaymentCrypto = "crypto"
	PaymentMixed  = "mixed"
)

// Submission statuses.
const (
	StatusDraft     = "draft"
	StatusValidated = "validated"
	StatusSubmitted = "submitted"
)

// Organization represents a reporting entity.
type Organization struct {
	ID             int64
	Name           string
	RegistrationID string
}

// Setting is one organization configuration value. XBRLElement is empty when the
// setting does not feed the survey.
type Setting struct {
	OrganizationID int64
	Key            string
	Value          string
	XBRLElement    string
}

// Client represents a client record as read by the aggregation engine.
type Client struct {
	ID                   int64
	OrganizationID       int64
	ClientType           string
	Nationality          string
	IncorporationCountry string
	IsPEP                bool
	RiskLevel            string
	OnboardedOn          string
	DiscardedAt          sql.NullTime
}

// BeneficialOwner represents a beneficial owner of a legal-entity or trust client.
type BeneficialOwner struct {
	ID          int64
	ClientID    int64
	Nationality string
	IsPEP       bool
}

// Transaction represents a real-estate transaction.
type Transaction struct {
	ID              int64
	OrganizationID  int64
	ClientID        sql.NullInt64
	TransactionType string
	TransactionDate string
	AmountCents     int64
	PaymentMethod   string
	CashAmountCents int64
}

// Training represents an AML training session.
type Training struct {
	ID             int64
	OrganizationID int64
	TrainingDate   string
	StaffCount     int
}

// Submission is the yearly survey record owning all stored element values.
type Submission struct {
	ID              int64
	OrganizationID  int64
	Year            int
	Status          string
	TaxonomyVersion string
	CreatedAt       time.Time
}

// SubmissionValue is one stored value per (submission, element).
type SubmissionValue struct {
	ID           int64
	SubmissionID int64
	ElementName  string
	Value        string
	Source       Source
	Overridden   bool
	ConfirmedAt  sql.NullTime
	Metadata     map[string]any
	UpdatedAt    time.Time
}

// Locked reports whether a human has taken ownership of the value, in which case
// recalculation must leave it alone.
func (v SubmissionValue) Locked() bool {
	switch v.Source {
	case SourceCalculated:
		return v.Overridden
	case SourceFromSettings:
		return v.ConfirmedAt.Valid
	case SourceManual:
		return true
	}
	return false
}
