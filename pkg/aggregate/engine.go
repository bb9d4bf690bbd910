// Package aggregate derives survey values from business records and stores them as
// submission values.
package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/metrics"
)

// RecordSource reads the business records aggregates are computed from.
type RecordSource interface {
	ListKeptClients(ctx context.Context, organizationID int64, asOf string) ([]db.Client, error)
	ListBeneficialOwners(ctx context.Context, organizationID int64, asOf string) ([]db.BeneficialOwner, error)
	ListTransactions(ctx context.Context, organizationID int64, from, to string) ([]db.Transaction, error)
	CountSTRReports(ctx context.Context, organizationID int64, from, to string) (int, error)
	ListTrainings(ctx context.Context, organizationID int64, from, to string) ([]db.Training, error)
}

// SettingSource reads organization settings.
type SettingSource interface {
	ListSettings(ctx context.Context, organizationID int64) ([]db.Setting, error)
}

// ValueStore persists submission values.
type ValueStore interface {
	Transaction(ctx context.Context, fn func(*sql.Tx) error) error
	ListValuesTx(ctx context.Context, q db.Querier, submissionID int64) ([]db.SubmissionValue, error)
	InsertValue(ctx context.Context, q db.Querier, v db.SubmissionValue) error
	UpdateValue(ctx context.Context, q db.Querier, v db.SubmissionValue) error
}

// Computed is one derived value ready for storage.
type Computed struct {
	Value  string
	Source db.Source
	// Family names the aggregate that produced the value; stored as provenance.
	Family string
}

// Values maps element names to computed values.
type Values map[string]Computed

// PopulateResult summarizes what Populate did to the stored values.
type PopulateResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	Locked    int
	// LockedElements lists the elements left alone because a human owns them.
	LockedElements []string
}

// Engine computes and stores survey aggregates.
type Engine struct {
	records  RecordSource
	settings SettingSource
	values   ValueStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables populate instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an aggregation engine.
func NewEngine(records RecordSource, settings SettingSource, values ValueStore, opts ...Option) *Engine {
	e := &Engine{
		records:  records,
		settings: settings,
		values:   values,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scope is the organization and reporting period a computation runs for.
type scope struct {
	organizationID int64
	from           string
	to             string
}

func newScope(submission *db.Submission) scope {
	return scope{
		organizationID: submission.OrganizationID,
		from:           fmt.Sprintf("%04d-01-01", submission.Year),
		to:             fmt.Sprintf("%04d-12-31", submission.Year),
	}
}

type family struct {
	name    string
	compute func(ctx context.Context, s scope) (Values, error)
}

func (e *Engine) families() []family {
	return []family{
		{"clients", e.clientCounts},
		{"nationalities", e.nationalityBreakdown},
		{"transactions", e.transactionTotals},
		{"payments", e.paymentMethods},
		{"str_reports", e.suspiciousReports},
		{"beneficial_owners", e.beneficialOwners},
		{"trainings", e.trainings},
		{"settings", e.settingValues},
	}
}

// ComputeAll runs every aggregate family for the submission and merges the results.
// Families run concurrently; the first failure cancels the others.
func (e *Engine) ComputeAll(ctx context.Context, submission *db.Submission) (Values, error) {
	s := newScope(submission)
	families := e.families()
	results := make([]Values, len(families))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range families {
		i, f := i, f
		g.Go(func() error {
			values, err := f.compute(ctx, s)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", f.name, err)
			}
			for name, v := range values {
				v.Family = f.name
				values[name] = v
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in family order: a calculated value takes precedence over a setting
	// that targets the same element.
	merged := make(Values)
	for i, values := range results {
		for name, v := range values {
			if prev, dup := merged[name]; dup {
				e.logger.Warn("element produced by two aggregates, keeping the first",
					"element", name, "kept", prev.Family, "dropped", families[i].name)
				continue
			}
			merged[name] = v
		}
	}

	return merged, nil
}

// Populate computes all aggregates and writes them in one transaction. Missing rows
// are inserted and changed rows updated; rows a human has taken ownership of are
// skipped. Any failure rolls the whole run back.
func (e *Engine) Populate(ctx context.Context, submission *db.Submission) (PopulateResult, error) {
	start := time.Now()
	result, err := e.populate(ctx, submission)
	e.metrics.ObservePopulate(result.Inserted, result.Updated, result.Unchanged, result.Locked, time.Since(start), err)
	if err != nil {
		return PopulateResult{}, err
	}

	e.logger.Info("populated submission",
		"submission_id", submission.ID,
		"year", submission.Year,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"locked", result.Locked,
	)
	return result, nil
}

func (e *Engine) populate(ctx context.Context, submission *db.Submission) (PopulateResult, error) {
	computed, err := e.ComputeAll(ctx, submission)
	if err != nil {
		return PopulateResult{}, err
	}

	names := make([]string, 0, len(computed))
	for name := range computed {
		names = append(names, name)
	}
	sort.Strings(names)

	var result PopulateResult
	err = e.values.Transaction(ctx, func(tx *sql.Tx) error {
		stored, err := e.values.ListValuesTx(ctx, tx, submission.ID)
		if err != nil {
			return err
		}
		existing := make(map[string]db.SubmissionValue, len(stored))
		for _, v := range stored {
			existing[v.ElementName] = v
		}

		for _, name := range names {
			c := computed[name]
			row := db.SubmissionValue{
				SubmissionID: submission.ID,
				ElementName:  name,
				Value:        c.Value,
				Source:       c.Source,
				Metadata:     map[string]any{"family": c.Family},
			}

			prev, ok := existing[name]
			switch {
			case !ok:
				if err := e.values.InsertValue(ctx, tx, row); err != nil {
					return err
				}
				result.Inserted++
			case prev.Locked():
				result.Locked++
				result.LockedElements = append(result.LockedElements, name)
			case prev.Value == c.Value && prev.Source == c.Source:
				result.Unchanged++
			default:
				if err := e.values.UpdateValue(ctx, tx, row); err != nil {
					return err
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return PopulateResult{}, fmt.Errorf("failed to populate submission %d: %w", submission.ID, err)
	}

	return result, nil
}
