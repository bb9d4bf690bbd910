package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/testutil"
)

func TestRecordQueries(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	records := db.NewRecordStore(conn)

	b.NaturalPerson("FR", false, "low")
	company := b.LegalEntity("MC", "high")
	b.DiscardedClient("IT")
	b.BeneficialOwner(company, true)
	b.BeneficialOwner(company, false)

	b.Transaction(db.TransactionPurchase, "2024-03-01", 50_000_00, db.PaymentWire, 0)
	b.Transaction(db.TransactionSale, "2023-12-31", 10_000_00, db.PaymentWire, 0)
	b.STRReport("2024-05-01")
	b.STRReport("2025-01-01")
	b.Training("2024-09-10", 4)

	clients, err := records.ListKeptClients(ctx, b.Org.ID, "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	clients, err = records.ListKeptClients(ctx, b.Org.ID, "2023-12-31")
	require.NoError(t, err)
	assert.Empty(t, clients, "clients onboarded after the cut-off are excluded")

	owners, err := records.ListBeneficialOwners(ctx, b.Org.ID, "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, owners, 2)

	txns, err := records.ListTransactions(ctx, b.Org.ID, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(50_000_00), txns[0].AmountCents)

	count, err := records.CountSTRReports(ctx, b.Org.ID, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	trainings, err := records.ListTrainings(ctx, b.Org.ID, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	require.Len(t, trainings, 1)
	assert.Equal(t, 4, trainings[0].StaffCount)
}

func TestOrganizations(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	orgs := db.NewOrganizationStore(conn)

	org, err := orgs.CreateOrganization(ctx, "Agence du Port", "RE-042")
	require.NoError(t, err)

	found, err := orgs.GetOrganizationByRegistrationID(ctx, "RE-042")
	require.NoError(t, err)
	assert.Equal(t, org.ID, found.ID)

	_, err = orgs.GetOrganization(ctx, 9999)
	assert.True(t, errors.Is(err, db.ErrNotFound))

	require.NoError(t, orgs.PutSetting(ctx, db.Setting{OrganizationID: org.ID, Key: "legal_form", Value: "SARL", XBRLElement: "a2103"}))
	require.NoError(t, orgs.PutSetting(ctx, db.Setting{OrganizationID: org.ID, Key: "legal_form", Value: "SAM", XBRLElement: "a2103"}))
	require.NoError(t, orgs.PutSetting(ctx, db.Setting{OrganizationID: org.ID, Key: "contact", Value: "compliance@example.mc"}))

	settings, err := orgs.ListSettings(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "contact", settings[0].Key)
	assert.Empty(t, settings[0].XBRLElement)
	assert.Equal(t, "SAM", settings[1].Value)
}
