package taxonomy

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogSection is one questionnaire tab and the elements it shows, in order.
type CatalogSection struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Elements []string `yaml:"elements"`
}

type catalogFile struct {
	Sections []CatalogSection `yaml:"sections"`
}

// SectionCatalog maps questionnaire sections to element names. The taxonomy files do not
// encode the regulator's questionnaire tabs, so this table is maintained by hand.
type SectionCatalog struct {
	sections []CatalogSection
	byID     map[string]int
	byElem   map[string]string
}

// LoadSectionCatalog reads a section catalog YAML file.
func LoadSectionCatalog(path string) (*SectionCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read section catalog: %w", err)
	}
	return ParseSectionCatalog(data)
}

// ParseSectionCatalog decodes a section catalog document.
func ParseSectionCatalog(data []byte) (*SectionCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	c := &SectionCatalog{
		byID:   make(map[string]int),
		byElem: make(map[string]string),
	}
	for i, section := range file.Sections {
		if section.ID == "" {
			return nil, fmt.Errorf("section %d has no id", i+1)
		}
		if _, dup := c.byID[section.ID]; dup {
			return nil, fmt.Errorf("duplicate section id %q", section.ID)
		}
		c.byID[section.ID] = len(c.sections)
		c.sections = append(c.sections, section)
		for _, name := range section.Elements {
			if other, dup := c.byElem[name]; dup {
				return nil, fmt.Errorf("element %s listed in sections %q and %q", name, other, section.ID)
			}
			c.byElem[name] = section.ID
		}
	}

	return c, nil
}

// Sections returns all sections in questionnaire order.
func (c *SectionCatalog) Sections() []CatalogSection {
	out := make([]CatalogSection, len(c.sections))
	copy(out, c.sections)
	return out
}

// Section returns the section with the given id.
func (c *SectionCatalog) Section(id string) (CatalogSection, bool) {
	i, ok := c.byID[id]
	if !ok {
		return CatalogSection{}, false
	}
	return c.sections[i], true
}

// SectionFor returns the id of the section listing an element.
func (c *SectionCatalog) SectionFor(element string) (string, bool) {
	id, ok := c.byElem[element]
	return id, ok
}

// Validate checks every listed element against the registry.
func (c *SectionCatalog) Validate(lookup Lookup) error {
	var unknown []string
	for _, section := range c.sections {
		for _, name := range section.Elements {
			if _, ok := lookup.Element(name); !ok {
				unknown = append(unknown, section.ID+"/"+name)
			}
		}
	}

	if len(unknown) > 0 {
		return fmt.Errorf("section catalog references unknown elements: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ValidateAtStartup applies the taxonomy startup policy to the catalog: a mismatch
// with the registry is returned in production and only logged otherwise.
func (c *SectionCatalog) ValidateAtStartup(lookup Lookup, production bool, logger *slog.Logger) error {
	err := c.Validate(lookup)
	if err == nil || production {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("section catalog does not match the taxonomy", "error", err)
	return nil
}
