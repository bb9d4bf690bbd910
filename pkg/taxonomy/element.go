// Package taxonomy loads the regulator's XBRL taxonomy (element schema, label linkbase and
// presentation linkbase) into an immutable registry of report elements.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the value type of a report element.
type Type string

const (
	TypeMonetary Type = "monetary"
	TypeInteger  Type = "integer"
	TypeBoolean  Type = "boolean"
	TypeDecimal  Type = "decimal"
	TypeString   Type = "string"
)

// ParseType converts a type name from an override table.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeMonetary, TypeInteger, TypeBoolean, TypeDecimal, TypeString:
		return t, nil
	}
	return "", fmt.Errorf("unknown element type %q", s)
}

// Numeric reports whether values of this type are numbers.
func (t Type) Numeric() bool {
	return t == TypeMonetary || t == TypeInteger || t == TypeDecimal
}

// ElementPrefix is the namespace prefix the taxonomy puts in front of element names in
// locator references and ids (strix_a1101 -> a1101).
const ElementPrefix = "strix_"

// DimensionalElement is the single element reported once per country. The schema has no
// machine-readable marker for dimensional elements, so the list is maintained by hand.
const DimensionalElement = "a1103"

// DimensionalElements is the full set of hand-maintained dimensional elements. Everything
// downstream assumes it has exactly one member.
var DimensionalElements = map[string]bool{
	DimensionalElement: true,
}

// CountryKey returns the storage key of one country of a dimensional element
// (a1103_FR).
func CountryKey(element, code string) string {
	return element + "_" + code
}

// MergeBreakdown combines the JSON breakdown of a dimensional element with its
// per-country rows. A row replaces the breakdown entry of the same country. The
// codes present in both are returned sorted.
func MergeBreakdown[V any](breakdown, rows map[string]V) (map[string]V, []string) {
	merged := make(map[string]V, len(breakdown)+len(rows))
	for code, v := range breakdown {
		merged[code] = v
	}

	var conflicts []string
	for code, v := range rows {
		if _, ok := merged[code]; ok {
			conflicts = append(conflicts, code)
		}
		merged[code] = v
	}
	sort.Strings(conflicts)
	return merged, conflicts
}

// SplitCountryKey recognizes a per-country storage key and returns the dimensional
// element and the uppercased country code.
func SplitCountryKey(key string) (string, string, bool) {
	i := strings.LastIndexByte(key, '_')
	if i < 0 {
		return "", "", false
	}
	element, code := key[:i], key[i+1:]
	if !DimensionalElements[element] || len(code) != 2 {
		return "", "", false
	}
	return element, strings.ToUpper(code), true
}

// Element is the metadata of one reportable taxonomy element.
type Element struct {
	Name         string
	Type         Type
	Label        string
	VerboseLabel string
	ShortLabel   string
	Section      string
	Order        int
	Dimensional  bool
}

// DisplayLabel returns the short label when one is maintained, otherwise the standard
// label, otherwise the element name.
func (e Element) DisplayLabel() string {
	switch {
	case e.ShortLabel != "":
		return e.ShortLabel
	case e.Label != "":
		return e.Label
	}
	return e.Name
}

// Less orders elements by presentation order. Elements without an order sort last,
// by name.
func Less(a, b Element) bool {
	switch {
	case a.Order == 0 && b.Order == 0:
		return a.Name < b.Name
	case a.Order == 0:
		return false
	case b.Order == 0:
		return true
	case a.Order != b.Order:
		return a.Order < b.Order
	}
	return a.Name < b.Name
}

// Section groups elements that share a presentation section.
type Section struct {
	Name     string
	Elements []Element
}
