package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/compare"
)

var compareElement string

// compareCmd represents the compare command.
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a submission with the previous year",
	Long: `List the numeric values that changed by more than 25% since the
previous year's submission, or show the change of a single element.

Example:
  amsf-report compare --org MC12345 --year 2025
  amsf-report compare --org MC12345 --year 2025 --element a1101`,
	Run: runCompare,
}

func init() {
	addSubmissionFlags(compareCmd)
	compareCmd.Flags().StringVar(&compareElement, "element", "", "Compare a single element")
}

func runCompare(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	org := a.organization(ctx)
	sub := a.submission(ctx, org)

	engine := compare.NewEngine(a.submissions, a.registry)

	if compareElement != "" {
		c, err := engine.Compare(ctx, sub, compareElement)
		exitOnError(err, "failed to compare element")
		printComparison(c)
		return
	}

	if _, ok, err := engine.PreviousSubmission(ctx, sub); err != nil {
		exitOnError(err, "failed to load previous submission")
	} else if !ok {
		fmt.Printf("No %d submission to compare with\n", year-1)
		return
	}

	changes, err := engine.SignificantChanges(ctx, sub)
	exitOnError(err, "failed to compare submissions")

	fmt.Printf("\n=== Significant changes %d vs %d ===\n", year, year-1)
	if len(changes) == 0 {
		fmt.Println("(none)")
	}
	for _, c := range changes {
		printComparison(c)
	}
	fmt.Println()

	slog.Info("Compare completed", "significant", len(changes))
}

func printComparison(c compare.Comparison) {
	change := "n/a"
	if c.ChangePercent != nil {
		change = fmt.Sprintf("%+.2f%%", *c.ChangePercent)
	}
	flag := ""
	if c.Significant {
		flag = "  !"
	}
	fmt.Printf("%-8s %12s -> %-12s %10s%s\n", c.Element, deref(c.Previous), deref(c.Current), change, flag)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
