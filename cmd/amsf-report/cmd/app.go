package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/config"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/metrics"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/pathutil"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

// app holds the components shared by the commands.
type app struct {
	cfg         *config.Config
	paths       *pathutil.PathResolver
	conn        *db.Connection
	registry    *taxonomy.Registry
	catalog     *taxonomy.SectionCatalog
	orgs        *db.OrganizationStore
	submissions *db.SubmissionStore
	history     *db.ReportHistory
	gatherer    *prometheus.Registry
	metrics     *metrics.Metrics
}

// setup loads the configuration, opens the database and loads the taxonomy.
func setup(required ...[]string) *app {
	slog.Info("Loading configuration")

	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	required = append(required,
		[]string{"taxonomy", "dir"},
		[]string{"taxonomy", "version"},
		[]string{"storage", "dbPath"},
	)
	if err := cfg.Validate(required...); err != nil {
		exitOnError(err, "invalid configuration")
	}

	pathResolver := pathutil.New(pathutil.Config{
		TaxonomyDir:     cfg.Taxonomy.Dir,
		TaxonomyVersion: cfg.Taxonomy.Version,
		DatabasePath:    cfg.Storage.DBPath,
		OutputDir:       cfg.Report.OutputDir,
	})

	dbPath := pathResolver.GetDatabasePath()
	exitOnError(pathResolver.EnsureParentDir(dbPath), "failed to create database directory")
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	files := pathResolver.GetTaxonomyFiles()
	registry := taxonomy.NewRegistry(taxonomy.Files{
		Schema:       files.Schema,
		Labels:       files.Labels,
		Presentation: files.Presentation,
		Overrides:    cfg.Taxonomy.OverridesFile,
	}, taxonomy.WithVersion(cfg.Taxonomy.Version))
	if err := registry.LoadAtStartup(cfg.IsProduction()); err != nil {
		conn.Close()
		exitOnError(err, "failed to load taxonomy")
	}

	var catalog *taxonomy.SectionCatalog
	if path := cfg.Taxonomy.SectionsFile; path != "" {
		catalog, err = taxonomy.LoadSectionCatalog(path)
		if err == nil {
			err = catalog.ValidateAtStartup(registry, cfg.IsProduction(), slog.Default())
		}
		if err != nil {
			conn.Close()
			exitOnError(err, "failed to load section catalog")
		}
	}

	gatherer := prometheus.NewRegistry()

	return &app{
		cfg:         cfg,
		paths:       pathResolver,
		conn:        conn,
		registry:    registry,
		catalog:     catalog,
		orgs:        db.NewOrganizationStore(conn),
		submissions: db.NewSubmissionStore(conn),
		history:     db.NewReportHistory(conn),
		gatherer:    gatherer,
		metrics:     metrics.New(gatherer),
	}
}

// close writes the metrics textfile if requested and closes the database.
func (a *app) close() {
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, a.gatherer); err != nil {
			slog.Error("Failed to write metrics", "path", metricsFile, "error", err)
		}
	}
	if err := a.conn.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// organization returns the organization selected with --org.
func (a *app) organization(ctx context.Context) *db.Organization {
	org, err := a.orgs.GetOrganizationByRegistrationID(ctx, registrationID)
	if errors.Is(err, db.ErrNotFound) {
		exitOnError(fmt.Errorf("no organization with registration ID %q", registrationID), "unknown organization")
	}
	exitOnError(err, "failed to load organization")
	return org
}

// submission returns the existing submission of the organization for --year.
func (a *app) submission(ctx context.Context, org *db.Organization) *db.Submission {
	sub, err := a.submissions.GetSubmission(ctx, org.ID, year)
	if errors.Is(err, db.ErrNotFound) {
		exitOnError(fmt.Errorf("no %d submission for %s, run populate first", year, org.RegistrationID), "unknown submission")
	}
	exitOnError(err, "failed to load submission")
	return sub
}
