package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/archive"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/manifest"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/xbrl"
)

var generateDryRun bool

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the XBRL instance document",
	Long: `Generate the XBRL instance document of a submission from its stored values.

The document is written to <output dir>/<year>/<prefix>_<year>_<org>.xml
and recorded in the report history. Values copied from settings that were
never confirmed are listed as a reminder.

Example:
  amsf-report generate --org MC12345 --year 2025
  amsf-report generate --org MC12345 --year 2025 --dry-run`,
	Run: runGenerate,
}

func init() {
	addSubmissionFlags(generateCmd)
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Print the document instead of writing it")
}

func runGenerate(cmd *cobra.Command, args []string) {
	slog.Info("Starting generate", "org", registrationID, "year", year, "dry_run", generateDryRun)

	a := setup([]string{"report", "outputDir"}, []string{"report", "prefix"})
	defer a.close()

	ctx := context.Background()
	org := a.organization(ctx)
	sub := a.submission(ctx, org)

	values, err := a.submissions.ListValues(ctx, sub.ID)
	exitOnError(err, "failed to load values")

	version := sub.TaxonomyVersion
	if version == "" {
		version = a.registry.Version()
	}
	gen := xbrl.NewGenerator(xbrl.DefaultConfig(version), a.registry)
	doc, err := gen.Build(*org, sub, values)
	exitOnError(err, "failed to generate document")

	for _, ev := range manifest.New(a.registry, values).NeedsReview() {
		slog.Warn("Value copied from settings is not confirmed", "element", ev.Element.Name, "label", ev.Element.DisplayLabel())
	}

	fileName := xbrl.FileName(a.cfg.Report.Prefix, year, org.RegistrationID)
	if generateDryRun {
		fmt.Printf("[DRY RUN] Would write %s\n", fileName)
		fmt.Println(doc.Content)
		return
	}

	repo := archive.NewFileSystemRepository(a.paths)
	stored, err := repo.WriteDocument(year, fileName, doc.Content)
	exitOnError(err, "failed to write document")

	if err := a.history.RecordDocument(ctx, db.ReportDocument{
		SubmissionID: sub.ID,
		DocumentPath: stored.Path,
		FactCount:    doc.FactCount,
		SHA256:       stored.SHA256,
	}); err != nil {
		slog.Error("Failed to record document", "path", stored.Path, "error", err)
	}
	if err := a.history.SetMetadata(ctx, "last_generate", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record generate time", "error", err)
	}

	fmt.Printf("Wrote %s (%d facts, %d countries, sha256 %s)\n", stored.Path, doc.FactCount, len(doc.Countries), stored.SHA256[:12])

	slog.Info("Generate completed", "path", stored.Path, "facts", doc.FactCount)
}
