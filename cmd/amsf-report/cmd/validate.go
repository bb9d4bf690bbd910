package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/archive"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/validator"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/xbrl"
)

var validateFile string

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the generated document with the validation service",
	Long: `Send the generated instance document to the validation service.

Unavailable services are retried; content errors are listed per element.
A valid result marks the submission as validated. Every run is recorded
in the report history.

Example:
  amsf-report validate --org MC12345 --year 2025
  amsf-report validate --org MC12345 --year 2025 --file out/custom.xml`,
	Run: runValidate,
}

func init() {
	addSubmissionFlags(validateCmd)
	validateCmd.Flags().StringVar(&validateFile, "file", "", "Validate this file instead of the archived document")
}

func runValidate(cmd *cobra.Command, args []string) {
	slog.Info("Starting validate", "org", registrationID, "year", year)

	a := setup([]string{"validator", "url"}, []string{"validator", "mode"})
	defer a.close()

	ctx := context.Background()
	org := a.organization(ctx)
	sub := a.submission(ctx, org)

	var document string
	if validateFile != "" {
		data, err := os.ReadFile(validateFile)
		exitOnError(err, "failed to read document")
		document = string(data)
	} else {
		repo := archive.NewFileSystemRepository(a.paths)
		content, err := repo.ReadDocument(year, xbrl.FileName(a.cfg.Report.Prefix, year, org.RegistrationID))
		exitOnError(err, "failed to read document")
		if content == "" {
			exitOnError(fmt.Errorf("no document for %s %d, run generate first", org.RegistrationID, year), "missing document")
		}
		document = content
	}

	client := validator.NewClient(validator.ClientConfig{
		BaseURL:        a.cfg.Validator.URL,
		Path:           a.cfg.Validator.Path,
		Mode:           a.cfg.Validator.Mode,
		ConnectTimeout: a.cfg.Validator.ConnectTimeout,
		ReadTimeout:    a.cfg.Validator.ReadTimeout,
		Retries:        a.cfg.Validator.Retries,
	}, validator.WithMetrics(a.metrics))

	result := client.Validate(ctx, document)

	summary, err := json.Marshal(result)
	exitOnError(err, "failed to encode validation result")
	if err := a.history.RecordValidation(ctx, db.ValidationRun{
		SubmissionID: sub.ID,
		RequestID:    result.RequestID,
		Valid:        result.Valid,
		ErrorCount:   len(result.Errors),
		WarningCount: len(result.Warnings),
		Summary:      string(summary),
	}); err != nil {
		slog.Error("Failed to record validation", "error", err)
	}

	printIssues("Errors", result.Errors)
	printIssues("Warnings", result.Warnings)

	if !result.Valid {
		fmt.Printf("Document is NOT valid (request %s)\n", result.RequestID)
		a.close()
		os.Exit(1)
	}

	if err := a.submissions.UpdateStatus(ctx, sub.ID, db.StatusValidated); err != nil {
		slog.Error("Failed to update submission status", "error", err)
	}
	fmt.Printf("Document is valid (request %s)\n", result.RequestID)

	slog.Info("Validate completed", "valid", result.Valid, "warnings", len(result.Warnings))
}

func printIssues(title string, issues []validator.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n=== %s ===\n", title)
	for _, issue := range issues {
		if issue.Element != "" {
			fmt.Printf("[%s] %s: %s\n", issue.Code, issue.Element, issue.Message)
			continue
		}
		fmt.Printf("[%s] %s\n", issue.Code, issue.Message)
	}
	fmt.Println()
}
