package xbrl

import (
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

// MonetaryElements are reported in EUR with two decimals whatever the taxonomy says.
var MonetaryElements = map[string]bool{
	"a1401": true,
	"a1402": true,
	"a1403": true,
	"a1404": true,
}

// BooleanElements are reported as Yes/No tokens whatever the taxonomy says.
var BooleanElements = map[string]bool{
	"a1501": true,
	"a1503": true,
}

// truthyTokens are the stored spellings rendered as Yes.
var truthyTokens = map[string]bool{
	"true": true,
	"yes":  true,
	"oui":  true,
	"1":    true,
	"y":    true,
	"on":   true,
}

// factKind decides unit and formatting of a fact.
type factKind int

const (
	kindNumeric factKind = iota
	kindMonetary
	kindBoolean
	kindText
)

func classify(el taxonomy.Element) factKind {
	switch {
	case MonetaryElements[el.Name] || el.Type == taxonomy.TypeMonetary:
		return kindMonetary
	case BooleanElements[el.Name] || el.Type == taxonomy.TypeBoolean:
		return kindBoolean
	case el.Type == taxonomy.TypeString:
		return kindText
	}
	return kindNumeric
}

// formatBoolean renders any truthy token as Yes and everything else as No.
func formatBoolean(raw string) string {
	if truthyTokens[strings.ToLower(strings.TrimSpace(raw))] {
		return "Yes"
	}
	return "No"
}

// formatMonetary renders a plain decimal amount with exactly two decimals, rounding
// half away from zero on the digits themselves. Input that is not a plain decimal
// (exponents, separators, words) is returned unchanged.
func formatMonetary(raw string) string {
	s := strings.TrimSpace(raw)
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if (whole == "" && frac == "") || !digitsOnly(whole) || !digitsOnly(frac) {
		return raw
	}

	frac += "00"
	digits := []byte(whole + frac[:2])
	if len(frac) > 2 && frac[2] >= '5' {
		digits = increment(digits)
	}

	n := len(digits)
	units := strings.TrimLeft(string(digits[:n-2]), "0")
	if units == "" {
		units = "0"
	}
	out := units + "." + string(digits[n-2:])
	if negative && out != "0.00" {
		out = "-" + out
	}
	return out
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// increment adds one to a decimal digit string.
func increment(digits []byte) []byte {
	for i := len(digits) - 1; i >= 0; i-- {
		if digits[i] != '9' {
			digits[i]++
			return digits
		}
		digits[i] = '0'
	}
	return append([]byte{'1'}, digits...)
}

func formatValue(kind factKind, raw string) string {
	switch kind {
	case kindMonetary:
		return formatMonetary(raw)
	case kindBoolean:
		return formatBoolean(raw)
	}
	return strings.TrimSpace(raw)
}

// decimalsFor returns the decimals attribute of a fact, empty when none applies.
func decimalsFor(kind factKind, el taxonomy.Element) string {
	switch kind {
	case kindMonetary:
		return "2"
	case kindNumeric:
		if el.Type == taxonomy.TypeInteger || el.Dimensional {
			return "0"
		}
		return "INF"
	}
	return ""
}
