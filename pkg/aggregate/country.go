package aggregate

import (
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
)

// SanitizeCountryCode normalizes free-text country input to an ISO 3166-1 alpha-2
// code: uppercase, letters only, exactly two of them.
func SanitizeCountryCode(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}

	code := b.String()
	if len(code) != 2 {
		return "", false
	}
	return code, true
}

// CountryBreakdown counts clients per country: natural persons by nationality, legal
// entities and trusts by incorporation country. Unusable codes are dropped.
func CountryBreakdown(clients []db.Client) map[string]int {
	breakdown := make(map[string]int)
	for _, c := range clients {
		raw := c.Nationality
		if c.ClientType != db.ClientNaturalPerson {
			raw = c.IncorporationCountry
		}
		if code, ok := SanitizeCountryCode(raw); ok {
			breakdown[code]++
		}
	}
	return breakdown
}
