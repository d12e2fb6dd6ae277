package search

import (
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FindKind returns the definition names whose last segment equals kind,
// ignoring case.
func FindKind(kind string, names []string) []string {
	var matched []string
	for _, name := range names {
		if strings.EqualFold(kindOf(name), kind) {
			matched = append(matched, name)
		}
	}
	slices.Sort(matched)
	return matched
}

// Suggest returns up to limit definition names fuzzy matching query, closest first.
func Suggest(query string, names []string, limit int) []string {
	if query == "" || limit < 1 {
		return nil
	}

	ranks := fuzzy.RankFindFold(query, names)
	if len(ranks) == 0 {
		// the query may name a kind of a definition
		ranks = fuzzy.RankFindFold(kindOf(query), names)
	}
	sort.Stable(ranks)

	var suggestions []string
	for _, r := range ranks {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, r.Target)
	}
	return suggestions
}

func kindOf(name string) string {
	return name[strings.LastIndex(name, ".")+1:]
}
