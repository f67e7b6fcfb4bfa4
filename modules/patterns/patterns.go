package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ConflictingPatternsError is returned when a pattern appears in both the
// included and excluded sets of a filter.
type ConflictingPatternsError struct {
	Patterns []string
}

func (e *ConflictingPatternsError) Error() string {
	return fmt.Sprintf("conflicting patterns %v are both included and excluded", e.Patterns)
}

// Filter is an immutable include/exclude glob predicate over paths.
// A path matches if it satisfies at least one included pattern and no
// excluded pattern. "**" matches across path separators, "*" does not.
type Filter struct {
	included      []string
	excluded      []string
	caseSensitive bool
}

// New compiles a filter from inclusion and exclusion glob lists. An empty or
// nil inclusion list defaults to "**", which matches everything. In
// case-insensitive mode both pattern sets are lowercased before comparison.
func New(included, excluded []string, caseSensitive bool) (*Filter, error) {
	if len(included) == 0 {
		included = []string{"**"}
	}

	inc := normalize(included, caseSensitive)
	exc := normalize(excluded, caseSensitive)

	for _, pattern := range append(append([]string{}, inc...), exc...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}

	excluded2 := make(map[string]struct{}, len(exc))
	for _, pattern := range exc {
		excluded2[pattern] = struct{}{}
	}

	var conflicts []string
	for _, pattern := range inc {
		if _, ok := excluded2[pattern]; ok {
			conflicts = append(conflicts, pattern)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &ConflictingPatternsError{Patterns: conflicts}
	}

	return &Filter{
		included:      inc,
		excluded:      exc,
		caseSensitive: caseSensitive,
	}, nil
}

// Matches reports whether path is accepted by the filter. The path itself is
// never altered; case-insensitive mode only normalizes the comparison.
func (f *Filter) Matches(path string) bool {
	p := path
	if !f.caseSensitive {
		p = strings.ToLower(p)
	}

	return matchAny(f.included, p) && !matchAny(f.excluded, p)
}

func matchAny(pats []string, path string) bool {
	for _, pattern := range pats {
		ok, err := doublestar.PathMatch(pattern, path)
		if err == nil && ok {
			return true
		}
	}

	return false
}

func normalize(pats []string, caseSensitive bool) []string {
	out := make([]string, 0, len(pats))
	for _, pattern := range pats {
		if !caseSensitive {
			pattern = strings.ToLower(pattern)
		}
		out = append(out, pattern)
	}

	return out
}
