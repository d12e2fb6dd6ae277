package flatten

import (
	"strings"

	"github.com/bakito/crd-explain/internal/openapi"
)

// TypeName returns a readable type label: the kind of a referenced type,
// "<item type> array" for arrays and the declared type otherwise. Missing
// types are not inferred.
func (f *Flattener) TypeName(s *openapi.Schema) string {
	switch {
	case s == nil:
		return ""
	case s.IsRef():
		name := s.RefName()
		if kind := f.classifier.Classify(name).Kind; kind != "" {
			return kind
		}
		return name[strings.LastIndex(name, ".")+1:]
	case s.IsArray():
		return f.TypeName(s.Items) + " array"
	}
	return s.Type
}
