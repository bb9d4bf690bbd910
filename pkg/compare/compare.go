// Package compare audits a submission against the same organization's submission of
// the previous year.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

// SignificantThreshold is the absolute change, in percent, above which a change is
// flagged. A change of exactly the threshold is not significant.
const SignificantThreshold = 25.0

// SubmissionSource is the storage the engine reads from.
type SubmissionSource interface {
	GetSubmission(ctx context.Context, organizationID int64, year int) (*db.Submission, error)
	ListValues(ctx context.Context, submissionID int64) ([]db.SubmissionValue, error)
}

// Comparison is the year-over-year change of one element. Pointers are nil when the
// side is missing or the change is undefined.
type Comparison struct {
	Element       string
	Current       *string
	Previous      *string
	ChangePercent *float64
	Significant   bool
}

// Engine compares submission values across years.
type Engine struct {
	submissions SubmissionSource
	lookup      taxonomy.Lookup
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a comparison engine. The lookup decides which elements are numeric.
func NewEngine(submissions SubmissionSource, lookup taxonomy.Lookup, opts ...Option) *Engine {
	e := &Engine{
		submissions: submissions,
		lookup:      lookup,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PreviousSubmission returns the submission of the same organization for the year
// before, reporting false when there is none.
func (e *Engine) PreviousSubmission(ctx context.Context, submission *db.Submission) (*db.Submission, bool, error) {
	prev, err := e.submissions.GetSubmission(ctx, submission.OrganizationID, submission.Year-1)
	if errors.Is(err, db.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load previous submission: %w", err)
	}
	return prev, true, nil
}

// Compare compares one element of a submission with the previous year. Missing or
// non-numeric values give an undefined change; only storage failures are errors.
func (e *Engine) Compare(ctx context.Context, submission *db.Submission, element string) (Comparison, error) {
	current, err := e.values(ctx, submission.ID)
	if err != nil {
		return Comparison{}, err
	}

	var previous map[string]string
	prev, ok, err := e.PreviousSubmission(ctx, submission)
	if err != nil {
		return Comparison{}, err
	}
	if ok {
		if previous, err = e.values(ctx, prev.ID); err != nil {
			return Comparison{}, err
		}
	}

	return compareValues(element, current, previous), nil
}

// SignificantChanges returns the significant changes of the numeric elements of a
// submission, sorted by element name. It is empty when there is no previous year.
func (e *Engine) SignificantChanges(ctx context.Context, submission *db.Submission) ([]Comparison, error) {
	prev, ok, err := e.PreviousSubmission(ctx, submission)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Debug("no previous submission", "organization_id", submission.OrganizationID, "year", submission.Year)
		return []Comparison{}, nil
	}

	current, err := e.values(ctx, submission.ID)
	if err != nil {
		return nil, err
	}
	previous, err := e.values(ctx, prev.ID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(current))
	for name := range current {
		el, ok := e.lookup.Element(name)
		if !ok || !el.Type.Numeric() || el.Dimensional {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	changes := []Comparison{}
	for _, name := range names {
		if c := compareValues(name, current, previous); c.Significant {
			changes = append(changes, c)
		}
	}

	e.logger.Info("compared submissions",
		"submission_id", submission.ID,
		"previous_id", prev.ID,
		"elements", len(names),
		"significant", len(changes),
	)
	return changes, nil
}

func (e *Engine) values(ctx context.Context, submissionID int64) (map[string]string, error) {
	rows, err := e.submissions.ListValues(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load values of submission %d: %w", submissionID, err)
	}
	out := make(map[string]string, len(rows))
	for _, v := range rows {
		out[v.ElementName] = v.Value
	}
	return out, nil
}

func compareValues(element string, current, previous map[string]string) Comparison {
	c := Comparison{Element: element}
	if v, ok := current[element]; ok {
		c.Current = &v
	}
	if v, ok := previous[element]; ok {
		c.Previous = &v
	}
	if c.Current == nil || c.Previous == nil {
		return c
	}

	cur, ok := parseNumber(*c.Current)
	if !ok {
		return c
	}
	prev, ok := parseNumber(*c.Previous)
	if !ok || prev == 0 {
		return c
	}

	pct := math.Round((cur-prev)/prev*100*100) / 100
	c.ChangePercent = &pct
	c.Significant = math.Abs(pct) > SignificantThreshold
	return c
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
