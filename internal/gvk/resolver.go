// Package gvk guesses the group, version and kind of swagger definition names.
package gvk

import (
	"log/slog"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/bakito/crd-explain/internal/openapi"
)

// CoreGroup is the group assigned to apimachinery primitives and core API types.
const CoreGroup = "core"

// Resolver classifies definition names. It is safe for concurrent use.
type Resolver struct {
	rules Rules
	log   *slog.Logger
	// names already reported as unclassifiable
	reported sync.Map
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for rule hits and unclassifiable names.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// NewResolver returns a Resolver using rules in the given order.
func NewResolver(rules Rules, opts ...Option) *Resolver {
	r := &Resolver{rules: rules, log: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Classify returns the group, version and kind of a definition name such as
// "io.k8s.api.core.v1.Pod". The empty GroupVersionKind is returned for utility
// types and for names no rule matches.
func (r *Resolver) Classify(name string) schema.GroupVersionKind {
	parts := strings.Split(name, ".")
	if len(parts) >= 3 {
		switch parts[len(parts)-3] {
		case "api":
			// io.k8s.apimachinery.pkg.api.resource.Quantity
			return schema.GroupVersionKind{
				Group:   CoreGroup,
				Version: parts[len(parts)-2],
				Kind:    parts[len(parts)-1],
			}
		case "util", "pkg":
			// io.k8s.apimachinery.pkg.util.intstr.IntOrString
			// io.k8s.apimachinery.pkg.runtime.RawExtension
			return schema.GroupVersionKind{}
		}
	}

	for i := range r.rules {
		group, version, kind, ok := r.rules[i].apply(name)
		if !ok || group == "" || version == "" || kind == "" {
			continue
		}
		r.log.Debug("Hit match rule", "rule", r.rules[i].Filter, "name", name,
			"group", group, "version", version, "kind", kind)
		return schema.GroupVersionKind{Group: group, Version: version, Kind: kind}
	}

	if _, seen := r.reported.LoadOrStore(name, struct{}{}); seen {
		r.log.Debug("Could not classify definition", "name", name)
	} else {
		r.log.Warn("Could not classify definition", "name", name)
	}
	return schema.GroupVersionKind{}
}

// ClassifyRef classifies the definition a $ref points at.
func (r *Resolver) ClassifyRef(ref string) schema.GroupVersionKind {
	return r.Classify(openapi.RefName(ref))
}

// Key joins group, version and kind with dots.
func Key(gvk schema.GroupVersionKind) string {
	return strings.Join([]string{gvk.Group, gvk.Version, gvk.Kind}, ".")
}
