package flatten

import (
	"fmt"
	"slices"

	"github.com/bakito/crd-explain/internal/openapi"
)

type walker struct {
	f     *Flattener
	scope Scope
	// definitions being expanded on the current path
	ancestors map[string]struct{}
	out       *Paths
}

func (f *Flattener) newWalker(scope Scope) *walker {
	return &walker{
		f:         f,
		scope:     scope,
		ancestors: make(map[string]struct{}),
		out:       newPaths(),
	}
}

func (w *walker) visit(path string, node *openapi.Schema, depth int) error {
	if node == nil {
		return nil
	}
	if depth > w.f.maxDepth {
		return fmt.Errorf("%w (%d) at %q", ErrMaxDepth, w.f.maxDepth, path)
	}

	resolved, expanded, err := w.resolve(path, node, depth)
	if err != nil {
		return err
	}

	leaf := w.leaf(resolved)
	if path != "" {
		w.out.put(path, leaf)
	}
	if leaf.IsRef() {
		return nil
	}

	for _, name := range expanded {
		w.ancestors[name] = struct{}{}
		defer delete(w.ancestors, name)
	}

	if leaf.IsArray() {
		if isComplex(leaf.Items) {
			return w.visit(path+"[]", leaf.Items, depth+1)
		}
		return nil
	}

	for name, prop := range leaf.Properties.All() {
		if err := w.visit(path+"."+name, prop, depth+1); err != nil {
			return err
		}
	}

	if leaf.IsMap() && isComplex(leaf.AdditionalProperties.Schema) {
		return w.visit(path+"{}", leaf.AdditionalProperties.Schema, depth+1)
	}
	return nil
}

// resolve dereferences node unless its target is already being expanded.
// Definitions that are only a $ref to another definition are followed until a
// node that is not inlined is reached. expanded lists the dereferenced names.
func (w *walker) resolve(path string, node *openapi.Schema, depth int) (*openapi.Schema, []string, error) {
	var expanded []string
	for node.IsRef() {
		name := node.RefName()
		if _, ok := w.ancestors[name]; ok || slices.Contains(expanded, name) {
			w.f.log.Debug("Not expanding recursive reference", "path", path, "ref", name)
			break
		}
		if depth+len(expanded) > w.f.maxDepth {
			return nil, nil, fmt.Errorf("%w (%d) at %q", ErrMaxDepth, w.f.maxDepth, path)
		}

		resolved, err := w.f.ResolveRef(node, w.scope)
		if err != nil {
			return nil, nil, fmt.Errorf("%w at %q", err, path)
		}
		if resolved == node {
			break
		}
		expanded = append(expanded, name)
		node = resolved
	}
	return node, expanded, nil
}

// leaf returns a copy of node with the type filled in for objects and maps.
func (w *walker) leaf(node *openapi.Schema) *openapi.Schema {
	leaf := *node
	if leaf.Type == "" && (leaf.Properties.Len() > 0 || leaf.IsMap()) {
		leaf.Type = "object"
	}
	if leaf.IsMap() && !isComplex(leaf.AdditionalProperties.Schema) {
		if t := w.f.TypeName(leaf.AdditionalProperties.Schema); t != "" {
			leaf.Type = "object (" + t + ")"
		}
	}
	return &leaf
}

// isComplex reports whether s needs its own keys: a reference, an object with
// properties, or an array or map of such.
func isComplex(s *openapi.Schema) bool {
	switch {
	case s == nil:
		return false
	case s.IsRef():
		return true
	case s.IsArray():
		return isComplex(s.Items)
	case s.Properties.Len() > 0:
		return true
	case s.IsMap():
		return isComplex(s.AdditionalProperties.Schema)
	}
	return false
}
