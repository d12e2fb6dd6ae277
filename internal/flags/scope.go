package flags

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/bakito/crd-explain/internal/flatten"
)

var _ pflag.Value = &Scope{}

// Scope is the value of the --resolve flag. An empty value derives the scope
// from the flattened type, "none", "never" and "false" disable resolving and
// any other value names an API group or a definition.
type Scope struct {
	raw string
}

// String is an implementation of the pflag.Value interface.
func (s *Scope) String() string {
	return s.raw
}

// Set is an implementation of the pflag.Value interface.
func (s *Scope) Set(value string) error {
	s.raw = strings.TrimSpace(value)
	return nil
}

// Type is an implementation of the pflag.Value interface.
func (s *Scope) Type() string {
	return "scope"
}

// Raw returns the value as given on the command line.
func (s *Scope) Raw() string {
	return s.raw
}

// Value converts the flag into a flatten scope.
func (s *Scope) Value() flatten.Scope {
	switch strings.ToLower(s.raw) {
	case "":
		return flatten.Auto()
	case "none", "never", "false":
		return flatten.Never()
	}
	return flatten.Group(s.raw)
}
