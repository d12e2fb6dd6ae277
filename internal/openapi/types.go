package openapi

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// DefinitionsPrefix is the JSON pointer prefix of a reference into the definitions registry.
const DefinitionsPrefix = "#/definitions/"

// Schema represents a node of a swagger style definitions document.
// Only the subset needed to flatten a type is kept: $ref, type, format,
// description, properties, items, additionalProperties and
// x-kubernetes-group-version-kind.
type Schema struct {
	Ref                  string
	Type                 string
	Format               string
	Description          string
	Properties           *Properties
	Items                *Schema
	AdditionalProperties *SchemaOrBool
	GroupVersionKinds    []schema.GroupVersionKind
}

// SchemaOrBool is the value of additionalProperties: either a schema or a boolean.
type SchemaOrBool struct {
	Allows bool
	Schema *Schema
}

// IsRef reports whether the node is a reference into the definitions registry.
func (s *Schema) IsRef() bool {
	return s != nil && s.Ref != ""
}

// RefName returns the definition name the node references.
func (s *Schema) RefName() string {
	return RefName(s.Ref)
}

// IsArray reports whether the node is an array with an item schema.
func (s *Schema) IsArray() bool {
	return s != nil && s.Type == "array" && s.Items != nil
}

// IsMap reports whether the node carries a value schema in additionalProperties.
func (s *Schema) IsMap() bool {
	return s != nil && s.AdditionalProperties != nil && s.AdditionalProperties.Schema != nil
}

// DeepCopy returns a copy sharing no pointers with s.
func (s *Schema) DeepCopy() *Schema {
	if s == nil {
		return nil
	}
	out := *s
	out.Properties = s.Properties.DeepCopy()
	out.Items = s.Items.DeepCopy()
	if s.AdditionalProperties != nil {
		out.AdditionalProperties = &SchemaOrBool{
			Allows: s.AdditionalProperties.Allows,
			Schema: s.AdditionalProperties.Schema.DeepCopy(),
		}
	}
	out.GroupVersionKinds = slices.Clone(s.GroupVersionKinds)
	return &out
}

// RefName strips the definitions prefix from a $ref value.
func RefName(ref string) string {
	return strings.TrimPrefix(ref, DefinitionsPrefix)
}

// Properties is an insertion ordered mapping from field name to schema.
type Properties struct {
	names  []string
	values map[string]*Schema
}

// NewProperties returns an empty Properties.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]*Schema)}
}

// Set adds or replaces a property. New names are appended to the order.
func (p *Properties) Set(name string, s *Schema) {
	if p.values == nil {
		p.values = make(map[string]*Schema)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = s
}

// Get returns the schema of the named property.
func (p *Properties) Get(name string) (*Schema, bool) {
	if p == nil {
		return nil, false
	}
	s, ok := p.values[name]
	return s, ok
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// Names returns the property names in source order.
func (p *Properties) Names() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.names)
}

// All iterates the properties in source order.
func (p *Properties) All() iter.Seq2[string, *Schema] {
	return func(yield func(string, *Schema) bool) {
		if p == nil {
			return
		}
		for _, name := range p.names {
			if !yield(name, p.values[name]) {
				return
			}
		}
	}
}

// DeepCopy returns a copy sharing no pointers with p.
func (p *Properties) DeepCopy() *Properties {
	if p == nil {
		return nil
	}
	out := &Properties{
		names:  slices.Clone(p.names),
		values: make(map[string]*Schema, len(p.values)),
	}
	for name, s := range p.values {
		out.values[name] = s.DeepCopy()
	}
	return out
}

// Definitions maps fully qualified type names to their schema.
type Definitions map[string]*Schema

// Names returns the sorted definition names.
func (d Definitions) Names() []string {
	return slices.Sorted(maps.Keys(d))
}

// Lookup returns the definition a $ref points at. A nil entry counts as missing.
func (d Definitions) Lookup(ref string) (*Schema, bool) {
	s := d[RefName(ref)]
	return s, s != nil
}

// Merge copies all entries of other into d. Entries of other win.
func (d Definitions) Merge(other Definitions) {
	maps.Copy(d, other)
}

// DeepCopy returns a copy sharing no schema nodes with d.
func (d Definitions) DeepCopy() Definitions {
	if d == nil {
		return nil
	}
	out := make(Definitions, len(d))
	for name, s := range d {
		out[name] = s.DeepCopy()
	}
	return out
}

// Document is a swagger style document. Only the definitions are read.
type Document struct {
	Definitions Definitions `yaml:"definitions"`
}
