package flatten

import (
	"fmt"
	"strings"

	"github.com/bakito/crd-explain/internal/openapi"
)

var inlineDefinitionFormats = []string{
	"%sSpec",
	"%sStatus",
	"%sList",
	"%sStrategy",
	"%sRollback",
	"RollingUpdate%s",
	"%sEventSource",
}

// InlineDefinitionNames returns the names of the companion types of kind
// that are documented as part of kind and not on their own.
func InlineDefinitionNames(kind string) []string {
	names := make([]string, 0, len(inlineDefinitionFormats))
	for _, f := range inlineDefinitionFormats {
		names = append(names, fmt.Sprintf(f, kind))
	}
	return names
}

// Kinds returns the sorted names of all definitions that carry an
// x-kubernetes-group-version-kind extension, without companion types such as
// lists of another kind in the same package.
func Kinds(defs openapi.Definitions) []string {
	companions := make(map[string]bool)
	var kinds []string
	for _, name := range defs.Names() {
		if len(defs[name].GroupVersionKinds) == 0 {
			continue
		}
		kinds = append(kinds, name)

		i := strings.LastIndex(name, ".")
		for _, c := range InlineDefinitionNames(name[i+1:]) {
			companions[name[:i+1]+c] = true
		}
	}

	var result []string
	for _, name := range kinds {
		if !companions[name] {
			result = append(result, name)
		}
	}
	return result
}
