package openapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
	apiv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8syaml "k8s.io/apimachinery/pkg/util/yaml"
)

// Parse decodes a swagger document given as JSON or YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Definitions == nil {
		return nil, errors.New("document has no definitions")
	}
	return &doc, nil
}

// LoadFile reads and parses a swagger document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseCRD decodes one or more CRD manifests and returns one definition per CRD.
// Documents of other kinds are skipped.
func ParseCRD(data []byte, desiredVersion string) (Definitions, error) {
	defs := Definitions{}
	decoder := k8syaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)
	for {
		var crd apiv1.CustomResourceDefinition
		err := decoder.Decode(&crd)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode crd: %w", err)
		}
		if crd.Kind != "CustomResourceDefinition" {
			slog.Debug("Skipping document", "kind", crd.Kind, "name", crd.Name)
			continue
		}

		crdDefs, err := CRDDefinitions(&crd, desiredVersion)
		if err != nil {
			return nil, err
		}
		defs.Merge(crdDefs)
	}
	if len(defs) == 0 {
		return nil, errors.New("no CustomResourceDefinition found")
	}
	return defs, nil
}

// LoadCRDFile reads and parses a CRD manifest from path.
func LoadCRDFile(path, desiredVersion string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crd %s: %w", path, err)
	}
	defs, err := ParseCRD(data, desiredVersion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// CRDDefinitions converts the schema of the selected CRD version into a definition
// named the way the API server publishes CRDs in its OpenAPI document.
func CRDDefinitions(crd *apiv1.CustomResourceDefinition, desiredVersion string) (Definitions, error) {
	props, version, err := extractSchemas(*crd, desiredVersion)
	if err != nil {
		return nil, fmt.Errorf("crd %s: %w", crd.Name, err)
	}

	root := FromJSONSchemaProps(props)
	if len(root.GroupVersionKinds) == 0 {
		root.GroupVersionKinds = []schema.GroupVersionKind{{
			Group:   crd.Spec.Group,
			Version: version,
			Kind:    crd.Spec.Names.Kind,
		}}
	}
	return Definitions{
		DefinitionName(crd.Spec.Group, version, crd.Spec.Names.Kind): root,
	}, nil
}

// DefinitionName builds a reversed-DNS definition name, e.g.
// ("cert-manager.io", "v1", "Certificate") -> "io.cert-manager.v1.Certificate".
func DefinitionName(group, version, kind string) string {
	return ReverseGroup(group) + "." + version + "." + kind
}

// ReverseGroup reverses the dot separated segments of an API group.
func ReverseGroup(group string) string {
	parts := strings.Split(group, ".")
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}

// Extract schemas from CRD.
func extractSchemas(
	crd apiv1.CustomResourceDefinition,
	desiredVersion string,
) (props *apiv1.JSONSchemaProps, version string, err error) {
	for _, v := range crd.Spec.Versions {
		if v.Schema == nil || v.Schema.OpenAPIV3Schema == nil {
			continue
		}
		if (desiredVersion == "" && v.Storage) || (desiredVersion == v.Name && v.Served) {
			return v.Schema.OpenAPIV3Schema, v.Name, nil
		}
	}

	return nil, "", fmt.Errorf("could not find desired version %q in CRD", desiredVersion)
}

// FromJSONSchemaProps converts an apiextensions schema. Properties are ordered by name.
func FromJSONSchemaProps(props *apiv1.JSONSchemaProps) *Schema {
	if props == nil {
		return nil
	}
	s := &Schema{
		Type:        props.Type,
		Format:      props.Format,
		Description: props.Description,
	}
	if props.Ref != nil {
		s.Ref = *props.Ref
	}
	if s.Type == "" && props.XPreserveUnknownFields != nil && *props.XPreserveUnknownFields {
		s.Type = "object"
	}

	if props.Properties != nil {
		s.Properties = NewProperties()
		for _, name := range slices.Sorted(maps.Keys(props.Properties)) {
			prop := props.Properties[name]
			s.Properties.Set(name, FromJSONSchemaProps(&prop))
		}
	}

	if props.Items != nil {
		if props.Items.Schema != nil {
			s.Items = FromJSONSchemaProps(props.Items.Schema)
		} else if len(props.Items.JSONSchemas) > 0 {
			s.Items = FromJSONSchemaProps(&props.Items.JSONSchemas[0])
		}
	}

	if props.AdditionalProperties != nil {
		s.AdditionalProperties = &SchemaOrBool{
			Allows: props.AdditionalProperties.Allows,
			Schema: FromJSONSchemaProps(props.AdditionalProperties.Schema),
		}
	}
	return s
}
