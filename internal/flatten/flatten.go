// Package flatten turns nested, self-referential swagger definitions into a flat
// mapping of path keys such as ".spec.ports[].name" to leaf schemas.
package flatten

import (
	"errors"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/bakito/crd-explain/internal/openapi"
)

// DefaultMaxDepth bounds the nesting of a single flatten call.
const DefaultMaxDepth = 128

var (
	// ErrDanglingRef is returned for a $ref to a name missing from the definitions.
	ErrDanglingRef = errors.New("dangling reference")
	// ErrMaxDepth is returned when a schema nests deeper than the configured maximum.
	ErrMaxDepth = errors.New("maximum depth exceeded")
	// ErrUnknownDefinition is returned when a requested definition does not exist.
	ErrUnknownDefinition = errors.New("unknown definition")
)

// Classifier returns the group, version and kind of a definition name.
type Classifier interface {
	Classify(name string) schema.GroupVersionKind
}

// Flattener flattens schemas of one definitions registry. The registry is
// never modified; a Flattener is safe for concurrent use.
type Flattener struct {
	definitions openapi.Definitions
	classifier  Classifier
	maxDepth    int
	log         *slog.Logger
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithMaxDepth sets the maximum nesting depth. Values < 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(f *Flattener) {
		if depth > 0 {
			f.maxDepth = depth
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flattener) {
		f.log = l
	}
}

// New returns a Flattener over definitions using c to classify type names.
func New(definitions openapi.Definitions, c Classifier, opts ...Option) *Flattener {
	f := &Flattener{
		definitions: definitions,
		classifier:  c,
		maxDepth:    DefaultMaxDepth,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Definitions returns the registry the Flattener reads from.
func (f *Flattener) Definitions() openapi.Definitions {
	return f.definitions
}

// Flatten flattens root. With an Auto scope the group is taken from the
// root's x-kubernetes-group-version-kind extension.
func (f *Flattener) Flatten(root *openapi.Schema, scope Scope) (*Paths, error) {
	if scope.IsAuto() {
		scope = Group(extensionGroup(root))
	}
	w := f.newWalker(scope)
	if err := w.visit("", root, 0); err != nil {
		return nil, err
	}
	return w.out, nil
}

// FlattenDefinition flattens the named definition. With an Auto scope the
// group is derived from the name. The definition itself counts as being
// expanded, so references back to it are not followed.
func (f *Flattener) FlattenDefinition(name string, scope Scope) (*Paths, error) {
	root := f.definitions[name]
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefinition, name)
	}
	if scope.IsAuto() {
		scope = f.ScopeOf(name)
	}
	w := f.newWalker(scope)
	w.ancestors[name] = struct{}{}
	if err := w.visit("", root, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return w.out, nil
}

// ScopeOf returns the scope of the named type. If the name can not be
// classified, the group of its x-kubernetes-group-version-kind extension is used.
func (f *Flattener) ScopeOf(name string) Scope {
	if gvk := f.classifier.Classify(name); !gvk.Empty() {
		return Group(gvk.Group)
	}
	return Group(extensionGroup(f.definitions[name]))
}

// Related returns the names of the definitions the named definition refers to,
// in traversal order without duplicates.
func (f *Flattener) Related(name string) ([]string, error) {
	paths, err := f.FlattenDefinition(name, Never())
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var related []string
	for _, leaf := range paths.All() {
		if !leaf.IsRef() || seen[leaf.RefName()] {
			continue
		}
		seen[leaf.RefName()] = true
		related = append(related, leaf.RefName())
	}
	return related, nil
}

func extensionGroup(s *openapi.Schema) string {
	if s == nil || len(s.GroupVersionKinds) == 0 {
		return ""
	}
	return s.GroupVersionKinds[0].Group
}
