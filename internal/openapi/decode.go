package openapi

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a schema node keeping the source order of its properties.
// Unknown keys are ignored.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be an object", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, resolveAlias(node.Content[i+1])

		var err error
		switch key {
		case "$ref":
			err = value.Decode(&s.Ref)
		case "type":
			s.Type = decodeType(value)
		case "format":
			err = value.Decode(&s.Format)
		case "description":
			err = value.Decode(&s.Description)
		case "properties":
			s.Properties = NewProperties()
			err = value.Decode(s.Properties)
		case "items":
			s.Items, err = decodeItems(value)
		case "additionalProperties":
			s.AdditionalProperties, err = decodeAdditionalProperties(value)
		case "x-kubernetes-group-version-kind":
			err = value.Decode(&s.GroupVersionKinds)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// UnmarshalYAML decodes the properties mapping in source order.
func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be an object", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		prop := &Schema{}
		if err := node.Content[i+1].Decode(prop); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		p.Set(name, prop)
	}
	return nil
}

// UnmarshalYAML decodes the definitions mapping. Null definitions are rejected.
func (d *Definitions) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: definitions must be an object", node.Line)
	}
	defs := make(Definitions, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, resolveAlias(node.Content[i+1])
		if value.ShortTag() == "!!null" {
			return fmt.Errorf("line %d: definition %s must not be null", value.Line, name)
		}
		s := &Schema{}
		if err := value.Decode(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		defs[name] = s
	}
	*d = defs
	return nil
}

// decodeType accepts a plain type name or a list of names; from a list the
// first entry that is not "null" is used.
func decodeType(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value
	case yaml.SequenceNode:
		for _, n := range node.Content {
			if n.Kind == yaml.ScalarNode && n.Value != "null" {
				return n.Value
			}
		}
	}
	return ""
}

// decodeItems reads a single item schema. For tuple style lists the first
// schema is used.
func decodeItems(node *yaml.Node) (*Schema, error) {
	switch node.Kind {
	case yaml.MappingNode:
		items := &Schema{}
		return items, node.Decode(items)
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeItems(resolveAlias(node.Content[0]))
	}
	return nil, nil
}

// decodeAdditionalProperties reads a boolean or a schema. Any other shape
// is dropped so the owning node is treated as a plain object.
func decodeAdditionalProperties(node *yaml.Node) (*SchemaOrBool, error) {
	switch {
	case node.Kind == yaml.MappingNode:
		value := &Schema{}
		if err := node.Decode(value); err != nil {
			return nil, err
		}
		return &SchemaOrBool{Allows: true, Schema: value}, nil
	case node.Kind == yaml.ScalarNode && node.ShortTag() == "!!bool":
		var allows bool
		if err := node.Decode(&allows); err != nil {
			return nil, err
		}
		return &SchemaOrBool{Allows: allows}, nil
	}
	return nil, nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}
