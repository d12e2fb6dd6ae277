package gvk

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bakito/crd-explain/internal/openapi"
)

const (
	groupToken         = "<group>"
	reversedGroupToken = "<reversed-group>"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule is one entry of the heuristic rule table.
type Rule struct {
	// Filter must be a substring of the name for the rule to be tried.
	Filter string `yaml:"rule"`
	// Match is applied to the whole name. It must capture group, version and kind.
	Match string `yaml:"match"`
	// GroupOverride replaces the captured group. <group> and <reversed-group> are substituted.
	GroupOverride string `yaml:"groupOverride,omitempty"`

	re *regexp.Regexp
}

// Rules is an ordered, compiled rule table. It is not modified after loading.
type Rules []Rule

// ParseRules decodes and compiles a YAML rule table.
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rules[i].Filter, err)
		}
	}
	return rules, nil
}

// LoadRules reads a rule table from path.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

var loadDefaultRules = sync.OnceValues(func() (Rules, error) {
	return ParseRules(defaultRules)
})

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	rules, err := loadDefaultRules()
	if err != nil {
		panic(fmt.Sprintf("invalid built-in rules: %v", err))
	}
	return rules
}

func (r *Rule) compile() error {
	if r.Match == "" {
		return errors.New("match must not be empty")
	}
	re, err := regexp.Compile("^(?:" + r.Match + ")$")
	if err != nil {
		return err
	}
	for _, name := range []string{"group", "version", "kind"} {
		if !slices.Contains(re.SubexpNames(), name) {
			return fmt.Errorf("match has no named group %q", name)
		}
	}
	r.re = re
	return nil
}

// apply returns the group, version and kind captured from name.
// ok is false if the filter or pattern does not match.
func (r *Rule) apply(name string) (group, version, kind string, ok bool) {
	if r.re == nil || !strings.Contains(name, r.Filter) {
		return "", "", "", false
	}
	m := r.re.FindStringSubmatch(name)
	if m == nil {
		return "", "", "", false
	}
	group = m[r.re.SubexpIndex("group")]
	version = m[r.re.SubexpIndex("version")]
	kind = m[r.re.SubexpIndex("kind")]

	if r.GroupOverride != "" {
		group = strings.NewReplacer(
			reversedGroupToken, openapi.ReverseGroup(group),
			groupToken, group,
		).Replace(r.GroupOverride)
	}
	return group, version, kind, true
}
