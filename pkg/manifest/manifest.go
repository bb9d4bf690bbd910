// Package manifest joins taxonomy metadata with the values stored for one submission.
package manifest

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
)

// Manifest is the read model of one submission. It is built from already loaded
// data and never touches storage.
type Manifest struct {
	lookup  taxonomy.Lookup
	values  map[string]db.SubmissionValue
	rows    map[string]map[string]int
	fields  FieldDefinitions
	catalog *taxonomy.SectionCatalog
	logger  *slog.Logger

	once sync.Once
	all  []ElementValue
}

// Option configures a Manifest.
type Option func(*Manifest)

// WithFieldDefinitions plugs in the questionnaire visibility rules.
func WithFieldDefinitions(fields FieldDefinitions) Option {
	return func(m *Manifest) {
		m.fields = fields
	}
}

// WithSectionCatalog groups ElementsBySection by questionnaire tab instead of by
// presentation section.
func WithSectionCatalog(catalog *taxonomy.SectionCatalog) Option {
	return func(m *Manifest) {
		m.catalog = catalog
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manifest) {
		m.logger = logger
	}
}

// New builds a manifest over the stored values of a submission. Dimensional values
// stored as one row per country (a1103_FR) are folded into their element.
func New(lookup taxonomy.Lookup, values []db.SubmissionValue, opts ...Option) *Manifest {
	m := &Manifest{
		lookup: lookup,
		values: make(map[string]db.SubmissionValue, len(values)),
		rows:   make(map[string]map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, v := range values {
		if name, code, ok := taxonomy.SplitCountryKey(v.ElementName); ok {
			if m.rows[name] == nil {
				m.rows[name] = make(map[string]int)
			}
			m.rows[name][code] += parseCount(v.Value)
			if _, stored := m.values[name]; !stored {
				// The element has per-country rows only; keep the row for provenance.
				m.values[name] = db.SubmissionValue{
					SubmissionID: v.SubmissionID,
					ElementName:  name,
					Source:       v.Source,
					Overridden:   v.Overridden,
					ConfirmedAt:  v.ConfirmedAt,
					UpdatedAt:    v.UpdatedAt,
				}
			}
			continue
		}
		m.values[v.ElementName] = v
	}

	for name, rows := range m.rows {
		m.rows[name] = m.mergeRows(name, rows)
	}

	return m
}

// mergeRows overlays per-country rows on the JSON breakdown stored for the same
// element. A malformed breakdown is ignored in favor of the rows.
func (m *Manifest) mergeRows(name string, rows map[string]int) map[string]int {
	v := m.values[name]
	if strings.TrimSpace(v.Value) == "" {
		return rows
	}

	breakdown, err := decodeBreakdown(v.Value)
	if err != nil {
		m.logger.Warn("ignoring malformed country breakdown next to per-country rows", "element", name, "error", err)
		return rows
	}
	merged, conflicts := taxonomy.MergeBreakdown(breakdown, rows)
	if len(conflicts) > 0 {
		m.logger.Warn("per-country rows replace breakdown entries", "element", name, "countries", conflicts)
	}
	return merged
}

// ValueFor returns the stored value of an element. For a dimensional element with
// per-country rows this is the merged breakdown.
func (m *Manifest) ValueFor(name string) (string, bool) {
	v, ok := m.values[name]
	if !ok {
		return "", false
	}
	if rows := m.rows[name]; rows != nil {
		return encodeBreakdown(rows), true
	}
	return v.Value, true
}

// ElementWithValue returns an element joined with its stored value, if any.
// Elements unknown to the taxonomy are absent.
func (m *Manifest) ElementWithValue(name string) (ElementValue, bool) {
	el, ok := m.lookup.Element(name)
	if !ok {
		return ElementValue{}, false
	}
	return m.join(el), true
}

func (m *Manifest) join(el taxonomy.Element) ElementValue {
	ev := ElementValue{Element: el, countries: m.rows[el.Name]}
	if v, ok := m.values[el.Name]; ok {
		ev.Value = &v
	}
	return ev
}

// AllElementsWithValues returns the elements that have a stored value, sorted by
// presentation order. The result is computed once per manifest.
func (m *Manifest) AllElementsWithValues() []ElementValue {
	m.once.Do(func() {
		for name := range m.values {
			el, ok := m.lookup.Element(name)
			if !ok {
				m.logger.Debug("stored value has no taxonomy element", "element", name)
				continue
			}
			m.all = append(m.all, m.join(el))
		}
		sort.Slice(m.all, func(i, j int) bool {
			return taxonomy.Less(m.all[i].Element, m.all[j].Element)
		})
	})

	out := make([]ElementValue, len(m.all))
	copy(out, m.all)
	return out
}

// SectionValues is one section of the manifest.
type SectionValues struct {
	Name     string
	Elements []ElementValue
}

// ElementsBySection groups the elements with values by section. Without a section
// catalog the taxonomy presentation sections are used, in order of first appearance.
func (m *Manifest) ElementsBySection() []SectionValues {
	all := m.AllElementsWithValues()
	if m.catalog != nil {
		return m.catalogSections(all)
	}

	var sections []SectionValues
	index := make(map[string]int)
	for _, ev := range all {
		i, ok := index[ev.Element.Section]
		if !ok {
			i = len(sections)
			index[ev.Element.Section] = i
			sections = append(sections, SectionValues{Name: ev.Element.Section})
		}
		sections[i].Elements = append(sections[i].Elements, ev)
	}
	return sections
}

func (m *Manifest) catalogSections(all []ElementValue) []SectionValues {
	byName := make(map[string]ElementValue, len(all))
	for _, ev := range all {
		byName[ev.Element.Name] = ev
	}

	var sections []SectionValues
	for _, section := range m.catalog.Sections() {
		sv := SectionValues{Name: section.Title}
		for _, name := range section.Elements {
			if ev, ok := byName[name]; ok {
				sv.Elements = append(sv.Elements, ev)
			}
		}
		if len(sv.Elements) > 0 {
			sections = append(sections, sv)
		}
	}
	return sections
}

// NeedsReview returns the elements whose stored value still waits for a human.
func (m *Manifest) NeedsReview() []ElementValue {
	var out []ElementValue
	for _, ev := range m.AllElementsWithValues() {
		if ev.NeedsReview() {
			out = append(out, ev)
		}
	}
	return out
}

// FieldVisible reports whether a questionnaire field is shown given the current
// answers. Without a usable rule the field is visible.
func (m *Manifest) FieldVisible(name string, current map[string]string) bool {
	if m.fields == nil {
		return true
	}
	if _, ok := m.fields.FieldDefinition(name); !ok {
		return true
	}

	visible, err := m.fields.Visible(name, current)
	if err != nil {
		m.logger.Debug("visibility rule not evaluated, showing field", "element", name, "error", err)
		return true
	}
	return visible
}

// CurrentData returns the stored values as a name to value map, the shape
// FieldVisible expects.
func (m *Manifest) CurrentData() map[string]string {
	data := make(map[string]string, len(m.values))
	for name := range m.values {
		data[name], _ = m.ValueFor(name)
	}
	return data
}
