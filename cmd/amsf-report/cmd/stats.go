package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/archive"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display submission statistics",
	Long: `Display statistics about the submissions of an organization.

Shows:
- Number of submissions and stored values by source
- Number of edited and confirmed values
- Generated documents and validation runs
- Archived years and the last populate and generate times

Example:
  amsf-report stats --org MC12345`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&registrationID, "org", "", "Organization registration ID (required)")
	statsCmd.MarkFlagRequired("org")
}

func runStats(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	org := a.organization(ctx)

	stats, err := a.submissions.GetStats(ctx, org.ID)
	exitOnError(err, "failed to get statistics")

	fmt.Printf("\n=== Statistics %s ===\n", org.RegistrationID)
	fmt.Printf("Submissions:        %d\n", stats.TotalSubmissions)
	fmt.Printf("Stored values:      %d\n", stats.TotalValues)
	for _, source := range []db.Source{db.SourceCalculated, db.SourceFromSettings, db.SourceManual} {
		fmt.Printf("  %-16s  %d\n", source, stats.ValuesBySource[source])
	}
	fmt.Printf("Edited values:      %d\n", stats.OverriddenValues)
	fmt.Printf("Confirmed values:   %d\n", stats.ConfirmedValues)
	fmt.Printf("Documents:          %d\n", stats.TotalDocuments)
	fmt.Printf("Validation runs:    %d\n", stats.TotalValidations)

	if stats.LastUpdate.Valid {
		fmt.Printf("Last update:        %s\n", stats.LastUpdate.String)
	} else {
		fmt.Printf("Last update:        (never)\n")
	}

	for _, key := range []string{"last_populate", "last_generate"} {
		value, err := a.history.GetMetadata(ctx, key)
		if err != nil {
			slog.Warn("Failed to read metadata", "key", key, "error", err)
			continue
		}
		if value != "" {
			fmt.Printf("%-19s %s\n", key+":", value)
		}
	}

	years, err := archive.NewFileSystemRepository(a.paths).ListYears()
	if err == nil && len(years) > 0 {
		fmt.Printf("Archived years:     %v\n", years)
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
