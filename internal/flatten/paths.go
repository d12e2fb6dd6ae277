package flatten

import (
	"iter"
	"slices"

	"github.com/bakito/crd-explain/internal/openapi"
)

// Paths is the flattened form of a schema: path keys in traversal order,
// each with its leaf descriptor.
type Paths struct {
	keys   []string
	leaves map[string]*openapi.Schema
}

func newPaths() *Paths {
	return &Paths{leaves: make(map[string]*openapi.Schema)}
}

// Len returns the number of keys.
func (p *Paths) Len() int {
	return len(p.keys)
}

// Keys returns the path keys in traversal order.
func (p *Paths) Keys() []string {
	return slices.Clone(p.keys)
}

// Get returns the leaf stored at key.
func (p *Paths) Get(key string) (*openapi.Schema, bool) {
	leaf, ok := p.leaves[key]
	return leaf, ok
}

// All iterates keys and leaves in traversal order.
func (p *Paths) All() iter.Seq2[string, *openapi.Schema] {
	return func(yield func(string, *openapi.Schema) bool) {
		for _, key := range p.keys {
			if !yield(key, p.leaves[key]) {
				return
			}
		}
	}
}

func (p *Paths) put(key string, leaf *openapi.Schema) {
	if _, ok := p.leaves[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.leaves[key] = leaf
}
