package flatten

import (
	"fmt"
	"regexp"

	"github.com/bakito/crd-explain/internal/gvk"
	"github.com/bakito/crd-explain/internal/openapi"
)

var coreInline = regexp.MustCompile(`(Spec|Status)$`)

// ResolveRef dereferences node if it is a $ref the scope allows to inline.
// The returned schema is a copy of the target carrying the description of
// node if it has one. If node is not dereferenced it is returned as is.
//
// References into the core group are inlined only for Spec and Status kinds.
// Any other reference is inlined only if its group equals the scope group.
func (f *Flattener) ResolveRef(node *openapi.Schema, scope Scope) (*openapi.Schema, error) {
	if !node.IsRef() {
		return node, nil
	}
	target, ok := f.definitions.Lookup(node.Ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDanglingRef, node.Ref)
	}
	if scope.IsNever() || !f.inScope(node.RefName(), scope) {
		return node, nil
	}

	resolved := *target
	if node.Description != "" {
		resolved.Description = node.Description
	}
	return &resolved, nil
}

func (f *Flattener) inScope(name string, scope Scope) bool {
	target := f.classifier.Classify(name)
	switch {
	case target.Empty():
		return false
	case target.Group == gvk.CoreGroup:
		return coreInline.MatchString(target.Kind)
	default:
		return scope.Group() != "" && target.Group == scope.Group()
	}
}
