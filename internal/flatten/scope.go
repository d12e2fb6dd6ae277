package flatten

type scopeKind int

const (
	scopeAuto scopeKind = iota
	scopeGroup
	scopeNever
)

// Scope limits which references are dereferenced during a flatten call.
// The zero value derives the group from the root type.
type Scope struct {
	kind  scopeKind
	group string
}

// Auto derives the scope group from the flattened root.
func Auto() Scope {
	return Scope{}
}

// Group resolves references into group g and core Spec/Status types.
func Group(g string) Scope {
	return Scope{kind: scopeGroup, group: g}
}

// Never leaves every reference unresolved.
func Never() Scope {
	return Scope{kind: scopeNever}
}

// IsAuto reports whether the scope is derived from the root.
func (s Scope) IsAuto() bool {
	return s.kind == scopeAuto
}

// IsNever reports whether references are never dereferenced.
func (s Scope) IsNever() bool {
	return s.kind == scopeNever
}

// Group returns the scope group. It is empty for Auto and Never.
func (s Scope) Group() string {
	return s.group
}

func (s Scope) String() string {
	switch s.kind {
	case scopeGroup:
		return s.group
	case scopeNever:
		return "never"
	default:
		return "auto"
	}
}
