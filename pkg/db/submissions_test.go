package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/testutil"
)

func TestEnsureSubmission(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	store := db.NewSubmissionStore(conn)

	first, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusDraft, first.Status)
	assert.Equal(t, "v1", first.TaxonomyVersion)

	again, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "v1", again.TaxonomyVersion, "existing submission keeps its version")

	_, err = store.GetSubmission(ctx, b.Org.ID, 2023)
	assert.True(t, errors.Is(err, db.ErrNotFound))

	require.NoError(t, store.UpdateStatus(ctx, first.ID, db.StatusValidated))
	byID, err := store.GetSubmissionByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusValidated, byID.Status)

	assert.True(t, errors.Is(store.UpdateStatus(ctx, 9999, db.StatusSubmitted), db.ErrNotFound))
}

func TestValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	store := db.NewSubmissionStore(conn)

	sub, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)

	err = store.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.InsertValue(ctx, tx, db.SubmissionValue{
			SubmissionID: sub.ID,
			ElementName:  "a1101",
			Value:        "3",
			Source:       db.SourceCalculated,
			Metadata:     map[string]any{"family": "clients"},
		}); err != nil {
			return err
		}
		return store.InsertValue(ctx, tx, db.SubmissionValue{
			SubmissionID: sub.ID,
			ElementName:  "a1001",
			Value:        "Agence RE-001",
			Source:       db.SourceFromSettings,
		})
	})
	require.NoError(t, err)

	values, err := store.ListValues(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "a1001", values[0].ElementName, "values are ordered by element name")
	assert.Equal(t, "clients", values[1].Metadata["family"])
	assert.Empty(t, values[0].Metadata)

	err = store.UpdateValue(ctx, conn.GetDB(), db.SubmissionValue{
		SubmissionID: sub.ID,
		ElementName:  "a1101",
		Value:        "4",
		Source:       db.SourceCalculated,
	})
	require.NoError(t, err)

	v, err := store.GetValue(ctx, sub.ID, "a1101")
	require.NoError(t, err)
	assert.Equal(t, "4", v.Value)

	_, err = store.GetValue(ctx, sub.ID, "a9999")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	store := db.NewSubmissionStore(conn)

	sub, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.InsertValue(ctx, tx, db.SubmissionValue{
			SubmissionID: sub.ID, ElementName: "a1101", Value: "1", Source: db.SourceCalculated,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	values, err := store.ListValues(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSetManualValue(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	store := db.NewSubmissionStore(conn)

	sub, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)
	require.NoError(t, store.InsertValue(ctx, conn.GetDB(), db.SubmissionValue{
		SubmissionID: sub.ID, ElementName: "a1101", Value: "3", Source: db.SourceCalculated,
	}))

	t.Run("calculated value becomes overridden", func(t *testing.T) {
		require.NoError(t, store.SetManualValue(ctx, sub.ID, "a1101", "5"))

		v, err := store.GetValue(ctx, sub.ID, "a1101")
		require.NoError(t, err)
		assert.Equal(t, "5", v.Value)
		assert.Equal(t, db.SourceCalculated, v.Source)
		assert.True(t, v.Overridden)
		assert.True(t, v.Locked())
	})

	t.Run("new value is manual", func(t *testing.T) {
		require.NoError(t, store.SetManualValue(ctx, sub.ID, "a2104", "RAS"))

		v, err := store.GetValue(ctx, sub.ID, "a2104")
		require.NoError(t, err)
		assert.Equal(t, db.SourceManual, v.Source)
		assert.True(t, v.Locked())
	})
}

func TestConfirmValue(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	store := db.NewSubmissionStore(conn)

	sub, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)
	require.NoError(t, store.InsertValue(ctx, conn.GetDB(), db.SubmissionValue{
		SubmissionID: sub.ID, ElementName: "a2103", Value: "Agence", Source: db.SourceFromSettings,
	}))
	require.NoError(t, store.InsertValue(ctx, conn.GetDB(), db.SubmissionValue{
		SubmissionID: sub.ID, ElementName: "a1101", Value: "3", Source: db.SourceCalculated,
	}))

	v, err := store.GetValue(ctx, sub.ID, "a2103")
	require.NoError(t, err)
	assert.False(t, v.Locked())

	require.NoError(t, store.ConfirmValue(ctx, sub.ID, "a2103", time.Now()))
	v, err = store.GetValue(ctx, sub.ID, "a2103")
	require.NoError(t, err)
	assert.True(t, v.ConfirmedAt.Valid)
	assert.True(t, v.Locked())

	err = store.ConfirmValue(ctx, sub.ID, "a1101", time.Now())
	assert.True(t, errors.Is(err, db.ErrNotFound), "only from-settings values can be confirmed")
}

func TestDeleteSubmissionCascades(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	store := db.NewSubmissionStore(conn)

	sub, err := store.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)
	require.NoError(t, store.InsertValue(ctx, conn.GetDB(), db.SubmissionValue{
		SubmissionID: sub.ID, ElementName: "a1101", Value: "3", Source: db.SourceCalculated,
	}))

	require.NoError(t, store.DeleteSubmission(ctx, sub.ID))

	var count int
	require.NoError(t, conn.GetDB().QueryRow(`SELECT COUNT(*) FROM submission_values`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestLocked(t *testing.T) {
	confirmed := sql.NullTime{Time: time.Now(), Valid: true}

	tests := []struct {
		name     string
		value    db.SubmissionValue
		expected bool
	}{
		{"calculated", db.SubmissionValue{Source: db.SourceCalculated}, false},
		{"calculated overridden", db.SubmissionValue{Source: db.SourceCalculated, Overridden: true}, true},
		{"from settings", db.SubmissionValue{Source: db.SourceFromSettings}, false},
		{"from settings confirmed", db.SubmissionValue{Source: db.SourceFromSettings, ConfirmedAt: confirmed}, true},
		{"manual", db.SubmissionValue{Source: db.SourceManual}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.Locked())
		})
	}
}
