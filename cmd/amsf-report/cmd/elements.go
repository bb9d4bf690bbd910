package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/manifest"
)

var (
	elementsReview bool
	elementsHidden bool
)

// elementsCmd represents the elements command.
var elementsCmd = &cobra.Command{
	Use:   "elements",
	Short: "List the stored values of a submission by section",
	Long: `List the stored values of a submission grouped by section, with their
source. Fields hidden by the questionnaire rules are left out unless
--all is given.

Example:
  amsf-report elements --org MC12345 --year 2025
  amsf-report elements --org MC12345 --year 2025 --review`,
	Run: runElements,
}

func init() {
	addSubmissionFlags(elementsCmd)
	elementsCmd.Flags().BoolVar(&elementsReview, "review", false, "Only list values that need a review")
	elementsCmd.Flags().BoolVar(&elementsHidden, "all", false, "Include fields hidden by the questionnaire rules")
}

func runElements(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	org := a.organization(ctx)
	sub := a.submission(ctx, org)

	values, err := a.submissions.ListValues(ctx, sub.ID)
	exitOnError(err, "failed to load values")

	opts := []manifest.Option{}
	if a.catalog != nil {
		opts = append(opts, manifest.WithSectionCatalog(a.catalog))
	}
	if dir := a.cfg.Taxonomy.VisibilityDir; dir != "" {
		rules, err := manifest.LoadRuleDefinitions(dir, year)
		exitOnError(err, "failed to load visibility rules")
		opts = append(opts, manifest.WithFieldDefinitions(rules))
	}
	m := manifest.New(a.registry, values, opts...)

	if elementsReview {
		fmt.Printf("\n=== Needs review (%d) ===\n", len(m.NeedsReview()))
		for _, ev := range m.NeedsReview() {
			printElement(m, ev)
		}
		fmt.Println()
		return
	}

	current := m.CurrentData()
	for _, section := range m.ElementsBySection() {
		fmt.Printf("\n=== %s ===\n", section.Name)
		for _, ev := range section.Elements {
			if !elementsHidden && !m.FieldVisible(ev.Element.Name, current) {
				continue
			}
			printElement(m, ev)
		}
	}
	fmt.Println()
}

func printElement(m *manifest.Manifest, ev manifest.ElementValue) {
	value, _ := m.ValueFor(ev.Element.Name)

	marker := ""
	switch {
	case ev.Overridden():
		marker = " (edited)"
	case ev.NeedsReview():
		marker = " (to confirm)"
	}

	fmt.Printf("%-6s %-40.40s %-20s %s%s\n", ev.Element.Name, ev.Element.DisplayLabel(), value, ev.Value.Source, marker)
	breakdown := ev.CountryBreakdown()
	for _, code := range ev.Countries() {
		fmt.Printf("       %s: %d\n", code, breakdown[code])
	}
}
