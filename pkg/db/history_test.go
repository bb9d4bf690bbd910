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

func TestReportHistory(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenDB(t)
	b := testutil.NewRecordBuilder(t, conn, "RE-001")
	submissions := db.NewSubmissionStore(conn)
	history := db.NewReportHistory(conn)

	sub, err := submissions.EnsureSubmission(ctx, b.Org.ID, 2024, "v1")
	require.NoError(t, err)

	t.Run("documents are upserted by path", func(t *testing.T) {
		doc := db.ReportDocument{SubmissionID: sub.ID, DocumentPath: "out/2024/amsf_survey_2024_RE-001.xml", FactCount: 10, SHA256: "aa"}
		require.NoError(t, history.RecordDocument(ctx, doc))
		doc.FactCount = 12
		doc.SHA256 = "bb"
		require.NoError(t, history.RecordDocument(ctx, doc))

		docs, err := history.ListDocuments(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, 12, docs[0].FactCount)
		assert.Equal(t, "bb", docs[0].SHA256)
	})

	t.Run("latest validation run", func(t *testing.T) {
		_, err := history.LatestValidation(ctx, sub.ID)
		assert.True(t, errors.Is(err, db.ErrNotFound))

		require.NoError(t, history.RecordValidation(ctx, db.ValidationRun{SubmissionID: sub.ID, RequestID: "r1", ErrorCount: 2}))
		require.NoError(t, history.RecordValidation(ctx, db.ValidationRun{SubmissionID: sub.ID, RequestID: "r2", Valid: true}))

		run, err := history.LatestValidation(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "r2", run.RequestID)
		assert.True(t, run.Valid)
		assert.Equal(t, "{}", run.Summary)
	})

	t.Run("metadata", func(t *testing.T) {
		value, err := history.GetMetadata(ctx, "last_populate")
		require.NoError(t, err)
		assert.Empty(t, value)

		require.NoError(t, history.SetMetadata(ctx, "last_populate", "2025-01-10"))
		require.NoError(t, history.SetMetadata(ctx, "last_populate", "2025-01-11"))
		value, err = history.GetMetadata(ctx, "last_populate")
		require.NoError(t, err)
		assert.Equal(t, "2025-01-11", value)
	})

	t.Run("stats", func(t *testing.T) {
		require.NoError(t, submissions.InsertValue(ctx, conn.GetDB(), db.SubmissionValue{
			SubmissionID: sub.ID, ElementName: "a1101", Value: "1", Source: db.SourceCalculated, Overridden: true,
		}))
		require.NoError(t, submissions.InsertValue(ctx, conn.GetDB(), db.SubmissionValue{
			SubmissionID: sub.ID, ElementName: "a2104", Value: "RAS", Source: db.SourceManual,
		}))

		stats, err := submissions.GetStats(ctx, b.Org.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalSubmissions)
		assert.Equal(t, 2, stats.TotalValues)
		assert.Equal(t, 1, stats.ValuesBySource[db.SourceManual])
		assert.Equal(t, 1, stats.OverriddenValues)
		assert.Equal(t, 0, stats.ConfirmedValues)
		assert.Equal(t, 1, stats.TotalDocuments)
		assert.Equal(t, 2, stats.TotalValidations)
		assert.True(t, stats.LastUpdate.Valid)
	})
}
