// Package xbrl serializes submission values into an XBRL instance document and
// reads such documents back.
package xbrl

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

// Namespaces of the instance document.
const (
	NamespaceXBRLI   = "http://www.xbrl.org/2003/instance"
	NamespaceLink    = "http://www.xbrl.org/2003/linkbase"
	NamespaceXLink   = "http://www.w3.org/1999/xlink"
	NamespaceISO4217 = "http://www.xbrl.org/2003/iso4217"
	NamespaceXBRLDI  = "http://xbrl.org/2006/xbrldi"
)

// Fixed identifiers used inside the document.
const (
	EntityContextID     = "ctx_entity"
	CountryContextIDFmt = "ctx_country_%s"
	UnitEUR             = "EUR"
	UnitPure            = "pure"
	CountryDimension    = "CountryDimension"
	factPrefix          = "strix"
)

var countryCode = regexp.MustCompile(`^[A-Z]{2}$`)

// GeneratorConfig holds the document settings that do not come from the submission.
type GeneratorConfig struct {
	// TaxonomyVersion builds the schemaRef href (strix_<version>.xsd).
	TaxonomyVersion string
	// Namespace is the business taxonomy namespace bound to the strix prefix.
	Namespace string
	// IdentifierScheme is the scheme URI of the entity identifier.
	IdentifierScheme string
}

// DefaultConfig returns the settings of the regulator's published taxonomy.
func DefaultConfig(version string) GeneratorConfig {
	return GeneratorConfig{
		TaxonomyVersion:  version,
		Namespace:        "https://amlcft.amsf.mc/dcm/DTS/strix_" + version,
		IdentifierScheme: "https://amlcft.amsf.mc",
	}
}

// SchemaRef returns the schemaRef href of the configured taxonomy version.
func (c GeneratorConfig) SchemaRef() string {
	return taxonomy.ElementPrefix + c.TaxonomyVersion + ".xsd"
}

// Document is a generated instance document.
type Document struct {
	Content   string
	FactCount int
	Countries []string
}

// Generator builds instance documents.
type Generator struct {
	cfg    GeneratorConfig
	lookup taxonomy.Lookup
	logger *slog.Logger
}

// NewGenerator creates a generator resolving element metadata through lookup.
func NewGenerator(cfg GeneratorConfig, lookup taxonomy.Lookup) *Generator {
	return &Generator{cfg: cfg, lookup: lookup, logger: slog.Default()}
}

// WithLogger returns a copy of the generator logging to logger.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	clone := *g
	clone.logger = logger
	return &clone
}

// Generate returns the instance document for the stored values of a submission.
func (g *Generator) Generate(org db.Organization, submission *db.Submission, values []db.SubmissionValue) (string, error) {
	doc, err := g.Build(org, submission, values)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// FileName returns the conventional file name of an instance document.
func FileName(prefix string, year int, registrationID string) string {
	return fmt.Sprintf("%s_%d_%s.xml", prefix, year, registrationID)
}

type fact struct {
	element   taxonomy.Element
	kind      factKind
	contextID string
	country   string
	value     string
}

// Build generates the document together with its fact and country counts.
func (g *Generator) Build(org db.Organization, submission *db.Submission, values []db.SubmissionValue) (*Document, error) {
	if submission == nil {
		return nil, fmt.Errorf("submission is required")
	}
	if strings.TrimSpace(org.RegistrationID) == "" {
		return nil, fmt.Errorf("organization %d has no registration id", org.ID)
	}

	facts := g.collectFacts(values)

	countrySet := make(map[string]bool)
	for _, f := range facts {
		if f.country != "" {
			countrySet[f.country] = true
		}
	}
	countries := make([]string, 0, len(countrySet))
	for code := range countrySet {
		countries = append(countries, code)
	}
	sort.Strings(countries)

	var sb strings.Builder
	sb.WriteString(xml.Header)
	g.writeRoot(&sb)
	fmt.Fprintf(&sb, "  <link:schemaRef xlink:type=\"simple\" xlink:href=\"%s\"/>\n", escape(g.cfg.SchemaRef()))

	instant := fmt.Sprintf("%04d-12-31", submission.Year)
	g.writeContext(&sb, EntityContextID, org.RegistrationID, instant, "")
	for _, code := range countries {
		g.writeContext(&sb, CountryContextID(code), org.RegistrationID, instant, code)
	}

	sb.WriteString("  <xbrli:unit id=\"" + UnitEUR + "\">\n    <xbrli:measure>iso4217:EUR</xbrli:measure>\n  </xbrli:unit>\n")
	sb.WriteString("  <xbrli:unit id=\"" + UnitPure + "\">\n    <xbrli:measure>xbrli:pure</xbrli:measure>\n  </xbrli:unit>\n")

	for _, f := range facts {
		writeFact(&sb, f)
	}
	sb.WriteString("</xbrli:xbrl>\n")

	return &Document{Content: sb.String(), FactCount: len(facts), Countries: countries}, nil
}

// CountryContextID returns the id of the dimensional context of a country.
func CountryContextID(code string) string {
	return fmt.Sprintf(CountryContextIDFmt, code)
}

// collectFacts turns stored values into facts sorted by element order, then name,
// then country. Values of elements unknown to the taxonomy are dropped. A
// per-country row replaces the breakdown entry of the same country.
func (g *Generator) collectFacts(values []db.SubmissionValue) []fact {
	var facts []fact
	dimensional := make(map[string]taxonomy.Element)
	breakdowns := make(map[string]map[string]string)
	rows := make(map[string]map[string]string)

	for _, v := range values {
		if strings.TrimSpace(v.Value) == "" {
			continue
		}

		name, rowCountry := v.ElementName, ""
		if base, code, ok := taxonomy.SplitCountryKey(v.ElementName); ok {
			name, rowCountry = base, code
		}

		el, ok := g.lookup.Element(name)
		if !ok {
			g.logger.Debug("skipping value without taxonomy element", "element", v.ElementName)
			continue
		}

		switch {
		case rowCountry != "":
			dimensional[name] = el
			if rows[name] == nil {
				rows[name] = make(map[string]string)
			}
			rows[name][rowCountry] = v.Value
		case el.Dimensional:
			breakdown, err := decodeBreakdown(v.Value)
			if err != nil {
				g.logger.Warn("skipping malformed country breakdown", "element", name, "error", err)
				continue
			}
			dimensional[name] = el
			counts := make(map[string]string, len(breakdown))
			for code, n := range breakdown {
				counts[code] = fmt.Sprint(n)
			}
			breakdowns[name] = counts
		default:
			kind := classify(el)
			facts = append(facts, fact{
				element:   el,
				kind:      kind,
				contextID: EntityContextID,
				value:     formatValue(kind, v.Value),
			})
		}
	}

	for name, el := range dimensional {
		merged, conflicts := taxonomy.MergeBreakdown(breakdowns[name], rows[name])
		if len(conflicts) > 0 {
			g.logger.Warn("per-country rows replace breakdown entries", "element", name, "countries", conflicts)
		}
		kind := classify(el)
		for code, value := range merged {
			facts = append(facts, countryFact(el, kind, code, value))
		}
	}

	// Countries that are not ISO codes cannot name a context.
	kept := facts[:0]
	for _, f := range facts {
		if f.contextID == "" {
			g.logger.Warn("skipping fact with invalid country code", "element", f.element.Name, "country", f.country)
			continue
		}
		kept = append(kept, f)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.element.Name != b.element.Name {
			return taxonomy.Less(a.element, b.element)
		}
		return a.country < b.country
	})
	return kept
}

func countryFact(el taxonomy.Element, kind factKind, code, value string) fact {
	f := fact{element: el, kind: kind, country: code, value: formatValue(kind, value)}
	if countryCode.MatchString(code) {
		f.contextID = CountryContextID(code)
	}
	return f
}

func decodeBreakdown(raw string) (map[string]int, error) {
	var breakdown map[string]int
	if err := json.Unmarshal([]byte(raw), &breakdown); err != nil {
		return nil, err
	}
	return breakdown, nil
}

func (g *Generator) writeRoot(sb *strings.Builder) {
	sb.WriteString("<xbrli:xbrl")
	for _, ns := range [][2]string{
		{"xbrli", NamespaceXBRLI},
		{"link", NamespaceLink},
		{"xlink", NamespaceXLink},
		{"iso4217", NamespaceISO4217},
		{"xbrldi", NamespaceXBRLDI},
		{factPrefix, g.cfg.Namespace},
	} {
		fmt.Fprintf(sb, "\n    xmlns:%s=\"%s\"", ns[0], escape(ns[1]))
	}
	sb.WriteString(">\n")
}

func (g *Generator) writeContext(sb *strings.Builder, id, identifier, instant, country string) {
	fmt.Fprintf(sb, "  <xbrli:context id=\"%s\">\n", id)
	sb.WriteString("    <xbrli:entity>\n")
	fmt.Fprintf(sb, "      <xbrli:identifier scheme=\"%s\">%s</xbrli:identifier>\n", escape(g.cfg.IdentifierScheme), escape(identifier))
	if country != "" {
		sb.WriteString("      <xbrli:segment>\n")
		fmt.Fprintf(sb, "        <xbrldi:explicitMember dimension=\"%s:%s\">%s:%s</xbrldi:explicitMember>\n",
			factPrefix, CountryDimension, factPrefix, country)
		sb.WriteString("      </xbrli:segment>\n")
	}
	sb.WriteString("    </xbrli:entity>\n")
	fmt.Fprintf(sb, "    <xbrli:period>\n      <xbrli:instant>%s</xbrli:instant>\n    </xbrli:period>\n", instant)
	sb.WriteString("  </xbrli:context>\n")
}

func writeFact(sb *strings.Builder, f fact) {
	fmt.Fprintf(sb, "  <%s:%s contextRef=\"%s\"", factPrefix, f.element.Name, f.contextID)
	switch f.kind {
	case kindMonetary:
		fmt.Fprintf(sb, " unitRef=\"%s\"", UnitEUR)
	case kindNumeric:
		fmt.Fprintf(sb, " unitRef=\"%s\"", UnitPure)
	}
	if decimals := decimalsFor(f.kind, f.element); decimals != "" {
		fmt.Fprintf(sb, " decimals=\"%s\"", decimals)
	}
	fmt.Fprintf(sb, ">%s</%s:%s>\n", escape(f.value), factPrefix, f.element.Name)
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
