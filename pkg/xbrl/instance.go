package xbrl

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Instance is the content of a parsed instance document.
type Instance struct {
	SchemaRef string
	Contexts  []Context
	Units     []Unit
	Facts     []Fact
}

// Context is a parsed xbrli:context.
type Context struct {
	ID         string
	Scheme     string
	Identifier string
	Instant    string
	Members    []ExplicitMember
}

// ExplicitMember is a dimension member of a context segment.
type ExplicitMember struct {
	Dimension string
	Value     string
}

// Unit is a parsed xbrli:unit.
type Unit struct {
	ID      string
	Measure string
}

// Fact is one reported value.
type Fact struct {
	Name       string
	ContextRef string
	UnitRef    string
	Decimals   string
	Value      string
}

type xmlContext struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Identifier struct {
			Scheme string `xml:"scheme,attr"`
			Value  string `xml:",chardata"`
		} `xml:"identifier"`
		Segment struct {
			Members []struct {
				Dimension string `xml:"dimension,attr"`
				Value     string `xml:",chardata"`
			} `xml:"explicitMember"`
		} `xml:"segment"`
	} `xml:"entity"`
	Instant string `xml:"period>instant"`
}

type xmlUnit struct {
	ID      string `xml:"id,attr"`
	Measure string `xml:"measure"`
}

type xmlSchemaRef struct {
	Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

type xmlFact struct {
	XMLName    xml.Name
	ContextRef string `xml:"contextRef,attr"`
	UnitRef    string `xml:"unitRef,attr"`
	Decimals   string `xml:"decimals,attr"`
	Value      string `xml:",chardata"`
}

// Parse reads an instance document. Every child of the root outside the instance and
// linkbase namespaces is taken as a fact.
func Parse(document string) (*Instance, error) {
	dec := xml.NewDecoder(strings.NewReader(document))

	var inst Instance
	depth := 0
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse instance: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Space != NamespaceXBRLI || t.Name.Local != "xbrl" {
					return nil, fmt.Errorf("unexpected root element %s", t.Name.Local)
				}
				sawRoot = true
				depth++
				continue
			}
			if err := inst.decodeChild(dec, t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			depth--
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("document has no xbrli:xbrl root")
	}
	return &inst, nil
}

func (inst *Instance) decodeChild(dec *xml.Decoder, start xml.StartElement) error {
	switch {
	case start.Name.Space == NamespaceXBRLI && start.Name.Local == "context":
		var c xmlContext
		if err := dec.DecodeElement(&c, &start); err != nil {
			return fmt.Errorf("failed to decode context: %w", err)
		}
		ctx := Context{
			ID:         c.ID,
			Scheme:     c.Entity.Identifier.Scheme,
			Identifier: strings.TrimSpace(c.Entity.Identifier.Value),
			Instant:    strings.TrimSpace(c.Instant),
		}
		for _, m := range c.Entity.Segment.Members {
			ctx.Members = append(ctx.Members, ExplicitMember{Dimension: m.Dimension, Value: strings.TrimSpace(m.Value)})
		}
		inst.Contexts = append(inst.Contexts, ctx)

	case start.Name.Space == NamespaceXBRLI && start.Name.Local == "unit":
		var u xmlUnit
		if err := dec.DecodeElement(&u, &start); err != nil {
			return fmt.Errorf("failed to decode unit: %w", err)
		}
		inst.Units = append(inst.Units, Unit{ID: u.ID, Measure: strings.TrimSpace(u.Measure)})

	case start.Name.Space == NamespaceLink && start.Name.Local == "schemaRef":
		var ref xmlSchemaRef
		if err := dec.DecodeElement(&ref, &start); err != nil {
			return fmt.Errorf("failed to decode schemaRef: %w", err)
		}
		inst.SchemaRef = ref.Href

	case start.Name.Space == NamespaceXBRLI || start.Name.Space == NamespaceLink:
		if err := dec.Skip(); err != nil {
			return fmt.Errorf("failed to skip %s: %w", start.Name.Local, err)
		}

	default:
		var f xmlFact
		if err := dec.DecodeElement(&f, &start); err != nil {
			return fmt.Errorf("failed to decode fact %s: %w", start.Name.Local, err)
		}
		inst.Facts = append(inst.Facts, Fact{
			Name:       f.XMLName.Local,
			ContextRef: f.ContextRef,
			UnitRef:    f.UnitRef,
			Decimals:   f.Decimals,
			Value:      f.Value,
		})
	}
	return nil
}

// Context returns the context with the given id.
func (inst *Instance) Context(id string) (Context, bool) {
	for _, c := range inst.Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return Context{}, false
}

// EntityContext returns the context without dimensions.
func (inst *Instance) EntityContext() (Context, bool) {
	return inst.Context(EntityContextID)
}

// Unit returns the unit with the given id.
func (inst *Instance) Unit(id string) (Unit, bool) {
	for _, u := range inst.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// Fact returns the fact of an element reported against a context.
func (inst *Instance) Fact(name, contextRef string) (Fact, bool) {
	for _, f := range inst.Facts {
		if f.Name == name && f.ContextRef == contextRef {
			return f, true
		}
	}
	return Fact{}, false
}

// FactsByName returns all facts of an element.
func (inst *Instance) FactsByName(name string) []Fact {
	var out []Fact
	for _, f := range inst.Facts {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}
