package emulator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/validator"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/xbrl"
)

// Issue codes reported by the structural checks.
const (
	CodeMalformed       = "MALFORMED_DOCUMENT"
	CodeMissingSchema   = "MISSING_SCHEMA_REF"
	CodeMissingEntity   = "MISSING_ENTITY_CONTEXT"
	CodeMissingID       = "MISSING_IDENTIFIER"
	CodeBadPeriod       = "INVALID_PERIOD"
	CodeUnknownContext  = "UNKNOWN_CONTEXT"
	CodeUnknownUnit     = "UNKNOWN_UNIT"
	CodeUnknownElement  = "UNKNOWN_ELEMENT"
	CodeDuplicateFact   = "DUPLICATE_FACT"
	CodeMissingUnit     = "MISSING_UNIT"
	CodeInvalidNumber   = "INVALID_NUMBER"
	CodeInvalidBoolean  = "INVALID_BOOLEAN"
	CodeYearEndExpected = "PERIOD_NOT_YEAR_END"
	CodeEmptyDocument   = "EMPTY_DOCUMENT"
)

var instantPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Report is the outcome of checking one document.
type Report struct {
	Instance *xbrl.Instance
	Errors   []validator.Issue
	Warnings []validator.Issue
}

// Valid reports whether the document has no errors.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Report) fail(code, element, format string, args ...any) {
	r.Errors = append(r.Errors, validator.Issue{Code: code, Message: fmt.Sprintf(format, args...), Element: element})
}

func (r *Report) warn(code, element, format string, args ...any) {
	r.Warnings = append(r.Warnings, validator.Issue{Code: code, Message: fmt.Sprintf(format, args...), Element: element})
}

// Check runs the structural checks on an instance document. With a nil lookup the
// facts are not checked against the taxonomy.
func Check(document string, lookup taxonomy.Lookup) *Report {
	report := &Report{}

	inst, err := xbrl.Parse(document)
	if err != nil {
		report.fail(CodeMalformed, "", "%v", err)
		return report
	}
	report.Instance = inst

	if inst.SchemaRef == "" {
		report.fail(CodeMissingSchema, "", "document has no schemaRef")
	}
	checkContexts(report, inst)

	units := make(map[string]bool, len(inst.Units))
	for _, u := range inst.Units {
		units[u.ID] = true
	}
	contexts := make(map[string]bool, len(inst.Contexts))
	for _, c := range inst.Contexts {
		contexts[c.ID] = true
	}

	if len(inst.Facts) == 0 {
		report.warn(CodeEmptyDocument, "", "document reports no facts")
	}

	seen := make(map[string]bool, len(inst.Facts))
	for _, f := range inst.Facts {
		key := f.Name + "@" + f.ContextRef
		if seen[key] {
			report.fail(CodeDuplicateFact, f.Name, "fact %s is reported twice in context %s", f.Name, f.ContextRef)
		}
		seen[key] = true

		if !contexts[f.ContextRef] {
			report.fail(CodeUnknownContext, f.Name, "fact %s refers to unknown context %q", f.Name, f.ContextRef)
		}
		if f.UnitRef != "" && !units[f.UnitRef] {
			report.fail(CodeUnknownUnit, f.Name, "fact %s refers to unknown unit %q", f.Name, f.UnitRef)
		}
		if lookup != nil {
			checkFact(report, f, lookup)
		}
	}

	return report
}

func checkContexts(report *Report, inst *xbrl.Instance) {
	entity, ok := inst.EntityContext()
	if !ok {
		report.fail(CodeMissingEntity, "", "document has no entity context %q", xbrl.EntityContextID)
	}

	for _, c := range inst.Contexts {
		if c.Identifier == "" {
			report.fail(CodeMissingID, "", "context %s has no entity identifier", c.ID)
		}
		if !instantPattern.MatchString(c.Instant) {
			report.fail(CodeBadPeriod, "", "context %s has invalid instant %q", c.ID, c.Instant)
			continue
		}
		if !strings.HasSuffix(c.Instant, "-12-31") {
			report.warn(CodeYearEndExpected, "", "context %s instant %s is not a year end", c.ID, c.Instant)
		}
		if ok && c.Identifier != entity.Identifier {
			report.fail(CodeMissingID, "", "context %s identifies %q instead of %q", c.ID, c.Identifier, entity.Identifier)
		}
	}
}

func checkFact(report *Report, f xbrl.Fact, lookup taxonomy.Lookup) {
	el, ok := lookup.Element(f.Name)
	if !ok {
		report.fail(CodeUnknownElement, f.Name, "element %s is not in the taxonomy", f.Name)
		return
	}

	value := strings.TrimSpace(f.Value)
	switch {
	case el.Type == taxonomy.TypeBoolean:
		if value != "Yes" && value != "No" {
			report.fail(CodeInvalidBoolean, f.Name, "element %s expects Yes or No, got %q", f.Name, value)
		}
	case el.Type.Numeric():
		if f.UnitRef == "" {
			report.fail(CodeMissingUnit, f.Name, "numeric element %s has no unit", f.Name)
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			report.fail(CodeInvalidNumber, f.Name, "element %s expects a number, got %q", f.Name, value)
		}
	}
}
