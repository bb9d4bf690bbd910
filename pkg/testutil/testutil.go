// Package testutil provides fixtures shared by package tests: a small taxonomy, temporary
// databases and a builder for business records.
package testutil

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

//go:embed testdata
var fixtures embed.FS

// TaxonomyVersion is the version token of the fixture taxonomy.
const TaxonomyVersion = "test"

// WriteTaxonomy copies the fixture taxonomy into a temporary directory and returns its files.
func WriteTaxonomy(t *testing.T) taxonomy.Files {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"strix_test.xsd", "strix_test_lab.xml", "strix_test_pre.xml", "overrides.yaml", "sections.yaml"} {
		data, err := fixtures.ReadFile("testdata/" + name)
		if err != nil {
			t.Fatalf("Failed to read fixture %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("Failed to write fixture %s: %v", name, err)
		}
	}

	return taxonomy.Files{
		Schema:       filepath.Join(dir, "strix_test.xsd"),
		Labels:       filepath.Join(dir, "strix_test_lab.xml"),
		Presentation: filepath.Join(dir, "strix_test_pre.xml"),
		Overrides:    filepath.Join(dir, "overrides.yaml"),
	}
}

// Fixture returns the raw content of a fixture file.
func Fixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := fixtures.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", name, err)
	}
	return data
}

// Registry returns a loaded registry over the fixture taxonomy.
func Registry(t *testing.T) *taxonomy.Registry {
	t.Helper()

	registry := taxonomy.NewRegistry(WriteTaxonomy(t), taxonomy.WithVersion(TaxonomyVersion))
	if err := registry.Load(); err != nil {
		t.Fatalf("Failed to load fixture taxonomy: %v", err)
	}
	return registry
}

// OpenDB opens a fresh SQLite database in a temporary directory.
func OpenDB(t *testing.T) *db.Connection {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "amsf-test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// RecordBuilder provides helper methods for seeding business records.
type RecordBuilder struct {
	t       *testing.T
	ctx     context.Context
	records *db.RecordStore
	orgs    *db.OrganizationStore
	Org     *db.Organization
}

// NewRecordBuilder creates an organization and returns a builder for its records.
func NewRecordBuilder(t *testing.T, conn *db.Connection, registrationID string) *RecordBuilder {
	t.Helper()

	ctx := context.Background()
	orgs := db.NewOrganizationStore(conn)
	org, err := orgs.CreateOrganization(ctx, "Agence "+registrationID, registrationID)
	if err != nil {
		t.Fatalf("Failed to create organization: %v", err)
	}

	return &RecordBuilder{
		t:       t,
		ctx:     ctx,
		records: db.NewRecordStore(conn),
		orgs:    orgs,
		Org:     org,
	}
}

// NaturalPerson adds a natural-person client.
func (b *RecordBuilder) NaturalPerson(nationality string, pep bool, risk string) int64 {
	return b.client(db.Client{ClientType: db.ClientNaturalPerson, Nationality: nationality, IsPEP: pep, RiskLevel: risk})
}

// LegalEntity adds a legal-entity client.
func (b *RecordBuilder) LegalEntity(country string, risk string) int64 {
	return b.client(db.Client{ClientType: db.ClientLegalEntity, IncorporationCountry: country, RiskLevel: risk})
}

// Trust adds a trust client.
func (b *RecordBuilder) Trust(country string) int64 {
	return b.client(db.Client{ClientType: db.ClientTrust, IncorporationCountry: country})
}

// DiscardedClient adds a natural person who is no longer a client.
func (b *RecordBuilder) DiscardedClient(nationality string) int64 {
	return b.client(db.Client{
		ClientType:  db.ClientNaturalPerson,
		Nationality: nationality,
		DiscardedAt: sql.NullTime{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Valid: true},
	})
}

func (b *RecordBuilder) client(c db.Client) int64 {
	b.t.Helper()

	c.OrganizationID = b.Org.ID
	if c.OnboardedOn == "" {
		c.OnboardedOn = "2024-01-15"
	}
	id, err := b.records.AddClient(b.ctx, c)
	if err != nil {
		b.t.Fatalf("Failed to add client: %v", err)
	}
	return id
}

// BeneficialOwner adds a beneficial owner to a client.
func (b *RecordBuilder) BeneficialOwner(clientID int64, pep bool) {
	b.t.Helper()

	if _, err := b.records.AddBeneficialOwner(b.ctx, db.BeneficialOwner{ClientID: clientID, Nationality: "FR", IsPEP: pep}); err != nil {
		b.t.Fatalf("Failed to add beneficial owner: %v", err)
	}
}

// Transaction adds a transaction. cashCents is only stored for cash and mixed payments.
func (b *RecordBuilder) Transaction(kind, date string, amountCents int64, method string, cashCents int64) {
	b.t.Helper()

	_, err := b.records.AddTransaction(b.ctx, db.Transaction{
		OrganizationID:  b.Org.ID,
		TransactionType: kind,
		TransactionDate: date,
		AmountCents:     amountCents,
		PaymentMethod:   method,
		CashAmountCents: cashCents,
	})
	if err != nil {
		b.t.Fatalf("Failed to add transaction: %v", err)
	}
}

// STRReport adds a suspicious transaction report.
func (b *RecordBuilder) STRReport(date string) {
	b.t.Helper()

	if err := b.records.AddSTRReport(b.ctx, b.Org.ID, date); err != nil {
		b.t.Fatalf("Failed to add STR report: %v", err)
	}
}

// Training adds a training session.
func (b *RecordBuilder) Training(date string, staff int) {
	b.t.Helper()

	if err := b.records.AddTraining(b.ctx, db.Training{OrganizationID: b.Org.ID, TrainingDate: date, StaffCount: staff}); err != nil {
		b.t.Fatalf("Failed to add training: %v", err)
	}
}

// Setting adds an organization setting, optionally targeting a survey element.
func (b *RecordBuilder) Setting(key, value, element string) {
	b.t.Helper()

	if err := b.orgs.PutSetting(b.ctx, db.Setting{OrganizationID: b.Org.ID, Key: key, Value: value, XBRLElement: element}); err != nil {
		b.t.Fatalf("Failed to put setting: %v", err)
	}
}
