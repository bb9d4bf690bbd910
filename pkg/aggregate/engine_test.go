package aggregate_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/aggregate"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/metrics"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/testutil"
)

type fixture struct {
	conn        *db.Connection
	builder     *testutil.RecordBuilder
	submissions *db.SubmissionStore
	engine      *aggregate.Engine
	submission  *db.Submission
}

func newFixture(t *testing.T, opts ...aggregate.Option) *fixture {
	t.Helper()

	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	submissions := db.NewSubmissionStore(conn)

	sub, err := submissions.EnsureSubmission(context.Background(), b.Org.ID, 2024, testutil.TaxonomyVersion)
	require.NoError(t, err)

	return &fixture{
		conn:        conn,
		builder:     b,
		submissions: submissions,
		engine:      aggregate.NewEngine(db.NewRecordStore(conn), db.NewOrganizationStore(conn), submissions, opts...),
		submission:  sub,
	}
}

func seed(b *testutil.RecordBuilder) {
	b.NaturalPerson("fr", true, "low")
	b.NaturalPerson("FR", false, "high")
	b.NaturalPerson("France", false, "low")
	b.NaturalPerson("i-t", false, "medium")
	company := b.LegalEntity("MC", "high")
	trust := b.Trust("fr")
	b.DiscardedClient("DE")

	b.BeneficialOwner(company, true)
	b.BeneficialOwner(company, false)
	b.BeneficialOwner(trust, false)

	b.Transaction(db.TransactionPurchase, "2024-02-01", 1_250_000_00, db.PaymentWire, 0)
	b.Transaction(db.TransactionSale, "2024-06-15", 800_000_50, db.PaymentMixed, 5_000_00)
	b.Transaction(db.TransactionRental, "2024-07-01", 2_400_00, db.PaymentCash, 2_400_00)
	b.Transaction(db.TransactionPurchase, "2023-12-31", 999_00, db.PaymentCrypto, 0)

	b.STRReport("2024-03-03")
	b.Training("2024-04-01", 3)
	b.Training("2024-10-01", 5)

	b.Setting("legal_form", "Agence", "a2103")
	b.Setting("contact_email", "compliance@example.mc", "")
}

func TestComputeAll(t *testing.T) {
	f := newFixture(t)
	seed(f.builder)

	values, err := f.engine.ComputeAll(context.Background(), f.submission)
	require.NoError(t, err)

	expected := map[string]string{
		aggregate.ElementClientsTotal:         "6",
		aggregate.ElementClientsNatural:       "4",
		aggregate.ElementClientsLegal:         "1",
		aggregate.ElementClientsTrust:         "1",
		aggregate.ElementClientsPEP:           "1",
		aggregate.ElementClientsHighRisk:      "2",
		aggregate.ElementClientsByCountry:     `{"FR":3,"IT":1,"MC":1}`,
		aggregate.ElementTransactionsTotal:    "3",
		aggregate.ElementTransactionsPurchase: "1",
		aggregate.ElementTransactionsSale:     "1",
		aggregate.ElementTransactionsRental:   "1",
		aggregate.ElementValueTotal:           "2052400.50",
		aggregate.ElementValuePurchase:        "1250000.00",
		aggregate.ElementValueSale:            "800000.50",
		aggregate.ElementValueRental:          "2400.00",
		aggregate.ElementCashPresent:          "Yes",
		aggregate.ElementCashCount:            "2",
		aggregate.ElementCryptoPresent:        "No",
		aggregate.ElementSuspiciousReports:    "1",
		aggregate.ElementOwnersTotal:          "3",
		aggregate.ElementOwnersPEP:            "1",
		aggregate.ElementTrainingSessions:     "2",
		aggregate.ElementStaffTrained:         "8",
		"a2103":                               "Agence",
	}

	for name, want := range expected {
		got, ok := values[name]
		if assert.True(t, ok, "missing %s", name) {
			assert.Equal(t, want, got.Value, name)
		}
	}
	assert.Len(t, values, len(expected))
	assert.Equal(t, db.SourceFromSettings, values["a2103"].Source)
	assert.Equal(t, db.SourceCalculated, values[aggregate.ElementClientsTotal].Source)
	assert.Equal(t, "clients", values[aggregate.ElementClientsTotal].Family)
}

func TestBreakdownInvariants(t *testing.T) {
	f := newFixture(t)
	seed(f.builder)

	values, err := f.engine.ComputeAll(context.Background(), f.submission)
	require.NoError(t, err)

	var breakdown map[string]int
	require.NoError(t, json.Unmarshal([]byte(values[aggregate.ElementClientsByCountry].Value), &breakdown))

	code := regexp.MustCompile(`^[A-Z]{2}$`)
	sum := 0
	for c, n := range breakdown {
		assert.Regexp(t, code, c)
		sum += n
	}

	total, err := strconv.Atoi(values[aggregate.ElementClientsTotal].Value)
	require.NoError(t, err)
	assert.LessOrEqual(t, sum, total)
}

func TestPopulateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(f.builder)

	first, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)
	assert.Equal(t, 24, first.Inserted)
	assert.Zero(t, first.Updated)

	before, err := f.submissions.ListValues(ctx, f.submission.ID)
	require.NoError(t, err)

	second, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 24, second.Unchanged)

	after, err := f.submissions.ListValues(ctx, f.submission.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Value, after[i].Value)
		assert.Equal(t, before[i].UpdatedAt, after[i].UpdatedAt, "%s was rewritten", before[i].ElementName)
	}
}

func TestPopulateUpdatesChangedValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(f.builder)

	_, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)

	f.builder.STRReport("2024-11-30")

	result, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	v, err := f.submissions.GetValue(ctx, f.submission.ID, aggregate.ElementSuspiciousReports)
	require.NoError(t, err)
	assert.Equal(t, "2", v.Value)
	assert.Equal(t, "str_reports", v.Metadata["family"])
}

func TestPopulateRespectsLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(f.builder)

	_, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)

	require.NoError(t, f.submissions.SetManualValue(ctx, f.submission.ID, aggregate.ElementClientsTotal, "10"))
	require.NoError(t, f.submissions.ConfirmValue(ctx, f.submission.ID, "a2103", f.submission.CreatedAt))

	f.builder.NaturalPerson("ES", false, "low")
	f.builder.Setting("legal_form", "Mandataire", "a2103")

	result, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Locked)
	assert.ElementsMatch(t, []string{aggregate.ElementClientsTotal, "a2103"}, result.LockedElements)

	total, err := f.submissions.GetValue(ctx, f.submission.ID, aggregate.ElementClientsTotal)
	require.NoError(t, err)
	assert.Equal(t, "10", total.Value)
	assert.True(t, total.Overridden)

	setting, err := f.submissions.GetValue(ctx, f.submission.ID, "a2103")
	require.NoError(t, err)
	assert.Equal(t, "Agence", setting.Value)

	natural, err := f.submissions.GetValue(ctx, f.submission.ID, aggregate.ElementClientsNatural)
	require.NoError(t, err)
	assert.Equal(t, "5", natural.Value, "unlocked values still follow the records")
}

func TestPopulateSkipsManualRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.submissions.SetManualValue(ctx, f.submission.ID, aggregate.ElementSuspiciousReports, "7"))

	result, err := f.engine.Populate(ctx, f.submission)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Locked)

	v, err := f.submissions.GetValue(ctx, f.submission.ID, aggregate.ElementSuspiciousReports)
	require.NoError(t, err)
	assert.Equal(t, "7", v.Value)
	assert.Equal(t, db.SourceManual, v.Source)
}

type failingStore struct {
	*db.SubmissionStore
	failOn string
}

func (s failingStore) InsertValue(ctx context.Context, q db.Querier, v db.SubmissionValue) error {
	if v.ElementName == s.failOn {
		return errors.New("disk full")
	}
	return s.SubmissionStore.InsertValue(ctx, q, v)
}

func TestPopulateRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(f.builder)

	m := metrics.New(prometheus.NewRegistry())
	store := failingStore{SubmissionStore: f.submissions, failOn: aggregate.ElementSuspiciousReports}
	engine := aggregate.NewEngine(db.NewRecordStore(f.conn), db.NewOrganizationStore(f.conn), store, aggregate.WithMetrics(m))

	_, err := engine.Populate(ctx, f.submission)
	require.Error(t, err)

	values, err := f.submissions.ListValues(ctx, f.submission.ID)
	require.NoError(t, err)
	assert.Empty(t, values, "no partial writes survive a failed run")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.PopulateRuns.WithLabelValues("error")))
}

type brokenRecords struct {
	aggregate.RecordSource
}

func (brokenRecords) CountSTRReports(context.Context, int64, string, string) (int, error) {
	return 0, sql.ErrConnDone
}

func TestComputeAllPropagatesErrors(t *testing.T) {
	f := newFixture(t)
	engine := aggregate.NewEngine(brokenRecords{db.NewRecordStore(f.conn)}, db.NewOrganizationStore(f.conn), f.submissions)

	_, err := engine.ComputeAll(context.Background(), f.submission)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Contains(t, err.Error(), "str_reports")
}
