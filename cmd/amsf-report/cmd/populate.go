package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/aggregate"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
)

// populateCmd represents the populate command.
var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Compute survey values from business records",
	Long: `Compute the survey values of a reporting year and store them.

This command:
1. Creates the submission for the year if it does not exist
2. Aggregates clients, transactions, reports and trainings
3. Copies configured settings
4. Stores the values in one transaction, leaving human-edited values alone

Running it twice without new records changes nothing.

Example:
  amsf-report populate --org MC12345 --year 2025`,
	Run: runPopulate,
}

func init() {
	addSubmissionFlags(populateCmd)
}

func runPopulate(cmd *cobra.Command, args []string) {
	slog.Info("Starting populate", "org", registrationID, "year", year)

	a := setup()
	defer a.close()

	ctx := context.Background()
	org := a.organization(ctx)

	sub, err := a.submissions.EnsureSubmission(ctx, org.ID, year, a.registry.Version())
	exitOnError(err, "failed to ensure submission")

	engine := aggregate.NewEngine(
		db.NewRecordStore(a.conn),
		a.orgs,
		a.submissions,
		aggregate.WithMetrics(a.metrics),
	)

	result, err := engine.Populate(ctx, sub)
	exitOnError(err, "failed to populate submission")

	if err := a.history.SetMetadata(ctx, "last_populate", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record populate time", "error", err)
	}

	fmt.Printf("\n=== Populate %s %d ===\n", org.RegistrationID, year)
	fmt.Printf("Inserted:  %d\n", result.Inserted)
	fmt.Printf("Updated:   %d\n", result.Updated)
	fmt.Printf("Unchanged: %d\n", result.Unchanged)
	fmt.Printf("Locked:    %d\n", result.Locked)
	for _, name := range result.LockedElements {
		fmt.Printf("  kept human value for %s\n", name)
	}
	fmt.Println()

	slog.Info("Populate completed", "submission_id", sub.ID)
}
