package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides holds the hand-maintained corrections applied after parsing: short labels for
// display and type corrections for elements the inference heuristic gets wrong.
type Overrides struct {
	ShortLabels   map[string]string `yaml:"short_labels"`
	TypeOverrides map[string]string `yaml:"type_overrides"`

	types map[string]Type
}

// LoadOverrides reads an overrides YAML file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	overrides, err := ParseOverrides(data)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	return overrides, nil
}

// ParseOverrides decodes an overrides document.
func ParseOverrides(data []byte) (*Overrides, error) {
	var overrides Overrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	overrides.types = make(map[string]Type, len(overrides.TypeOverrides))
	for name, raw := range overrides.TypeOverrides {
		t, err := ParseType(raw)
		if err != nil {
			return nil, fmt.Errorf("type override for %s: %w", name, err)
		}
		overrides.types[name] = t
	}

	return &overrides, nil
}
