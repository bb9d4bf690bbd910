package taxonomy

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Files locates the taxonomy artifacts of one version.
type Files struct {
	Schema       string
	Labels       string
	Presentation string
	// Overrides is an optional YAML file with short labels and type corrections.
	Overrides string
}

// explicitTypes maps declared item types (by local name) to element types.
var explicitTypes = map[string]Type{
	"integerItemType":  TypeInteger,
	"monetaryItemType": TypeMonetary,
	"stringItemType":   TypeString,
	"percentItemType":  TypeDecimal,
}

// booleanTokens are the enumeration values that mark a yes/no element.
var booleanTokens = map[string]bool{
	"Yes": true,
	"Oui": true,
}

type xsdSchema struct {
	Elements []xsdElement `xml:"element"`
}

type xsdElement struct {
	Name     string          `xml:"name,attr"`
	Type     string          `xml:"type,attr"`
	Abstract string          `xml:"abstract,attr"`
	Simple   *xsdRestriction `xml:"simpleType>restriction"`
	Complex  *xsdRestriction `xml:"complexType>simpleContent>restriction"`
}

type xsdRestriction struct {
	Base         string `xml:"base,attr"`
	Enumerations []struct {
		Value string `xml:"value,attr"`
	} `xml:"enumeration"`
}

type linkbase struct {
	LabelLinks        []labelLink        `xml:"labelLink"`
	PresentationLinks []presentationLink `xml:"presentationLink"`
}

type locator struct {
	Label string `xml:"label,attr"`
	Href  string `xml:"href,attr"`
}

type arc struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

type labelResource struct {
	Label string `xml:"label,attr"`
	Role  string `xml:"role,attr"`
	Text  string `xml:",chardata"`
}

type labelLink struct {
	Locators []locator       `xml:"loc"`
	Labels   []labelResource `xml:"label"`
	Arcs     []arc           `xml:"labelArc"`
}

type presentationLink struct {
	Role     string    `xml:"role,attr"`
	Locators []locator `xml:"loc"`
	Arcs     []arc     `xml:"presentationArc"`
}

// builder holds partially parsed elements between passes. Nothing in it is visible to
// readers until finalize copies it into immutable values.
type builder struct {
	elements map[string]*Element
}

// parse runs the schema, label and presentation passes in dependency order.
func parse(files Files, overrides *Overrides) ([]Element, error) {
	b := &builder{elements: make(map[string]*Element)}

	if err := b.schemaPass(files.Schema); err != nil {
		return nil, err
	}
	if err := b.labelPass(files.Labels); err != nil {
		return nil, err
	}
	if err := b.presentationPass(files.Presentation); err != nil {
		return nil, err
	}

	b.applyOverrides(overrides)
	return b.finalize(), nil
}

func (b *builder) schemaPass(path string) error {
	var schema xsdSchema
	if err := decodeFile(path, &schema); err != nil {
		return err
	}

	for _, decl := range schema.Elements {
		if decl.Name == "" || decl.Abstract == "true" || decl.Abstract == "1" {
			continue
		}
		b.elements[decl.Name] = &Element{
			Name:        decl.Name,
			Type:        inferType(decl),
			Dimensional: DimensionalElements[decl.Name],
		}
	}

	if len(b.elements) == 0 {
		return &LoadError{File: path, Err: fmt.Errorf("no element declarations found")}
	}
	return nil
}

// inferType applies, in order: the declared type table, enumeration-implies-boolean,
// percent/decimal restriction, string.
func inferType(decl xsdElement) Type {
	if t, ok := explicitTypes[localName(decl.Type)]; ok {
		return t
	}

	restriction := decl.Complex
	if restriction == nil {
		restriction = decl.Simple
	}
	if restriction == nil {
		return TypeString
	}

	for _, enum := range restriction.Enumerations {
		if booleanTokens[strings.TrimSpace(enum.Value)] {
			return TypeBoolean
		}
	}

	base := strings.ToLower(localName(restriction.Base))
	if strings.Contains(base, "percent") || strings.Contains(base, "decimal") {
		return TypeDecimal
	}

	return TypeString
}

func (b *builder) labelPass(path string) error {
	var lb linkbase
	if err := decodeFile(path, &lb); err != nil {
		return err
	}

	for _, link := range lb.LabelLinks {
		standard := make(map[string]string)
		verbose := make(map[string]string)
		for _, res := range link.Labels {
			text := strings.TrimSpace(res.Text)
			switch {
			case strings.Contains(strings.ToLower(res.Role), "verbose"):
				verbose[res.Label] = text
			case res.Role == "" || strings.HasSuffix(res.Role, "/label"):
				standard[res.Label] = text
			}
		}

		locators := locatorIndex(link.Locators)
		for _, a := range link.Arcs {
			el, ok := b.elements[resolveElementName(a.From, locators)]
			if !ok {
				continue
			}
			if text, ok := standard[a.To]; ok {
				el.Label = text
			}
			if text, ok := verbose[a.To]; ok {
				el.VerboseLabel = text
			}
		}
	}

	return nil
}

func (b *builder) presentationPass(path string) error {
	var lb linkbase
	if err := decodeFile(path, &lb); err != nil {
		return err
	}

	// The counter spans every link so the final order is global and deterministic.
	order := 0
	for _, link := range lb.PresentationLinks {
		section := sectionName(link.Role)
		locators := locatorIndex(link.Locators)
		for _, a := range link.Arcs {
			order++
			el, ok := b.elements[resolveElementName(a.To, locators)]
			if !ok || el.Order != 0 {
				continue
			}
			el.Section = section
			el.Order = order
		}
	}

	return nil
}

func (b *builder) applyOverrides(overrides *Overrides) {
	if overrides == nil {
		return
	}
	for name, label := range overrides.ShortLabels {
		if el, ok := b.elements[name]; ok {
			el.ShortLabel = label
		}
	}
	for name, t := range overrides.types {
		if el, ok := b.elements[name]; ok {
			el.Type = t
		}
	}
}

// finalize copies the builder into immutable values sorted by presentation order.
// Elements never reached by a presentation arc sort last, by name.
func (b *builder) finalize() []Element {
	elements := make([]Element, 0, len(b.elements))
	for _, el := range b.elements {
		elements = append(elements, *el)
	}
	sort.Slice(elements, func(i, j int) bool {
		return Less(elements[i], elements[j])
	})
	return elements
}

func locatorIndex(locators []locator) map[string]string {
	index := make(map[string]string, len(locators))
	for _, loc := range locators {
		index[loc.Label] = loc.Href
	}
	return index
}

// resolveElementName turns an arc endpoint into an element name: the endpoint's locator
// href fragment when there is one, else the endpoint itself, minus the namespace prefix.
func resolveElementName(endpoint string, locators map[string]string) string {
	ref := endpoint
	if href, ok := locators[endpoint]; ok && href != "" {
		ref = href
		if i := strings.LastIndex(href, "#"); i >= 0 {
			ref = href[i+1:]
		}
	}
	return strings.TrimPrefix(ref, ElementPrefix)
}

// sectionName derives a readable section from a role URI ending in Link_<Section_Name>.
func sectionName(role string) string {
	name := role
	if i := strings.LastIndex(role, "Link_"); i >= 0 {
		name = role[i+len("Link_"):]
	} else if i := strings.LastIndex(role, "/"); i >= 0 {
		name = role[i+1:]
	}
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

func localName(qname string) string {
	if i := strings.LastIndex(qname, ":"); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{File: path, Err: err}
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(v); err != nil {
		return &LoadError{File: path, Err: err}
	}
	return nil
}

// charsetReader accepts the Latin-1 encodings older taxonomy releases were published in.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}
