package manifest

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

// ElementValue is a taxonomy element with zero or one stored value.
type ElementValue struct {
	Element taxonomy.Element
	Value   *db.SubmissionValue

	countries map[string]int
}

// HasValue reports whether a value is stored.
func (ev ElementValue) HasValue() bool {
	return ev.Value != nil
}

// Calculated reports whether the stored value still comes from the aggregates
// unedited.
func (ev ElementValue) Calculated() bool {
	return ev.Value != nil && ev.Value.Source == db.SourceCalculated && !ev.Value.Overridden
}

// Overridden reports whether a human edited a calculated value.
func (ev ElementValue) Overridden() bool {
	return ev.Value != nil && ev.Value.Source == db.SourceCalculated && ev.Value.Overridden
}

// NeedsReview reports whether the value was copied from settings and has not been
// confirmed yet.
func (ev ElementValue) NeedsReview() bool {
	return ev.Value != nil && ev.Value.Source == db.SourceFromSettings && !ev.Value.ConfirmedAt.Valid
}

// CountryBreakdown returns the per-country counts of the dimensional element. It is
// empty for other elements and for values that are not a JSON object of counts.
// Per-country rows take precedence over the JSON entry of the same country.
func (ev ElementValue) CountryBreakdown() map[string]int {
	breakdown := make(map[string]int)
	if !ev.Element.Dimensional {
		return breakdown
	}

	if ev.countries != nil {
		for code, n := range ev.countries {
			breakdown[code] = n
		}
		return breakdown
	}
	if ev.Value != nil && strings.TrimSpace(ev.Value.Value) != "" {
		if decoded, err := decodeBreakdown(ev.Value.Value); err == nil {
			for code, n := range decoded {
				breakdown[code] = n
			}
		}
	}
	return breakdown
}

// Countries returns the country codes of CountryBreakdown in sorted order.
func (ev ElementValue) Countries() []string {
	breakdown := ev.CountryBreakdown()
	codes := make([]string, 0, len(breakdown))
	for code := range breakdown {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func decodeBreakdown(raw string) (map[string]int, error) {
	var breakdown map[string]int
	if err := json.Unmarshal([]byte(raw), &breakdown); err != nil {
		return nil, err
	}
	return breakdown, nil
}

func encodeBreakdown(breakdown map[string]int) string {
	data, err := json.Marshal(breakdown)
	if err != nil {
		return ""
	}
	return string(data)
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
