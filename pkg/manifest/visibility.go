package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldDefinition describes one questionnaire field.
type FieldDefinition struct {
	Name string
	// VisibleWhen lists sibling answers that must all match for the field to show.
	VisibleWhen map[string]string
}

// FieldDefinitions is the questionnaire definition the manifest consults for
// visibility. Rules depend on sibling answers and change from year to year.
type FieldDefinitions interface {
	FieldDefinition(name string) (FieldDefinition, bool)
	Visible(name string, data map[string]string) (bool, error)
}

type ruleFile struct {
	Fields map[string]struct {
		VisibleWhen map[string]string `yaml:"visible_when"`
	} `yaml:"fields"`
}

// RuleDefinitions is a FieldDefinitions backed by one YAML file per survey year.
type RuleDefinitions struct {
	year   int
	fields map[string]FieldDefinition
}

// RuleFileName returns the rule file name for a survey year.
func RuleFileName(year int) string {
	return fmt.Sprintf("visibility_%d.yaml", year)
}

// LoadRuleDefinitions reads the rules of a year from dir.
func LoadRuleDefinitions(dir string, year int) (*RuleDefinitions, error) {
	path := filepath.Join(dir, RuleFileName(year))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read visibility rules: %w", err)
	}

	rules, err := ParseRuleDefinitions(data, year)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ParseRuleDefinitions decodes a visibility rule document.
func ParseRuleDefinitions(data []byte, year int) (*RuleDefinitions, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	rules := &RuleDefinitions{year: year, fields: make(map[string]FieldDefinition, len(file.Fields))}
	for name, field := range file.Fields {
		for sibling := range field.VisibleWhen {
			if sibling == name {
				return nil, fmt.Errorf("field %s depends on itself", name)
			}
		}
		rules.fields[name] = FieldDefinition{Name: name, VisibleWhen: field.VisibleWhen}
	}
	return rules, nil
}

// Year returns the survey year the rules belong to.
func (r *RuleDefinitions) Year() int {
	return r.year
}

// FieldDefinition returns the definition of a field.
func (r *RuleDefinitions) FieldDefinition(name string) (FieldDefinition, bool) {
	def, ok := r.fields[name]
	return def, ok
}

// Visible evaluates the rule of a field. It fails when a sibling the rule depends
// on has not been answered.
func (r *RuleDefinitions) Visible(name string, data map[string]string) (bool, error) {
	def, ok := r.fields[name]
	if !ok {
		return true, nil
	}

	for sibling, want := range def.VisibleWhen {
		got, answered := data[sibling]
		if !answered {
			return false, fmt.Errorf("field %s depends on unanswered %s", name, sibling)
		}
		if !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			return false, nil
		}
	}
	return true, nil
}
