package rules

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/learningequality/bundlegen/internal/stage"
)

// Predicate selects the assets a rule applies to. Allow re-admits packages
// of the dependency pool that Exclude would otherwise reject.
type Predicate struct {
	Test    *stage.Pattern `json:"test"`
	Exclude *stage.Pattern `json:"exclude,omitempty"`
	Pool    string         `json:"pool,omitempty"`
	Allow   []string       `json:"allow,omitempty"`
}

func (p Predicate) Clone() Predicate {
	p.Allow = slices.Clone(p.Allow)
	return p
}

// Matches reports whether the asset at path is selected.
func (p Predicate) Matches(path string) bool {
	path = filepath.ToSlash(path)
	if !p.Test.Match(path) {
		return false
	}
	if p.Exclude.Match(path) && !p.allowed(path) {
		return false
	}
	return true
}

// allowed reports whether every pool segment of path is followed by an
// allow-listed package, so nested pools of an allowed package stay excluded
// unless they are allowed themselves. Scoped packages span two segments.
func (p Predicate) allowed(path string) bool {
	if len(p.Allow) == 0 || p.Pool == "" {
		return false
	}
	segments := strings.Split(path, "/")
	found := false
	for i, seg := range segments {
		if seg != p.Pool {
			continue
		}
		found = true
		if i+1 >= len(segments) {
			return false
		}
		pkg := segments[i+1]
		if strings.HasPrefix(pkg, "@") {
			if i+2 >= len(segments) {
				return false
			}
			pkg += "/" + segments[i+2]
		}
		if !slices.Contains(p.Allow, pkg) {
			return false
		}
	}
	return found
}

// packageName reports whether pkg is a plain package name or a scoped
// "@scope/name" one.
func packageName(pkg string) bool {
	parts := strings.Split(pkg, "/")
	switch {
	case len(parts) == 2 && strings.HasPrefix(parts[0], "@") && len(parts[0]) > 1:
	case len(parts) == 1 && !strings.HasPrefix(pkg, "@"):
	default:
		return false
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.Contains(part, `\`) {
			return false
		}
	}
	return true
}

// PredicateError reports a predicate whose inclusion and exclusion policies
// contradict each other.
type PredicateError struct {
	Category stage.Category
	Reason   string
}

func (err *PredicateError) Error() string {
	return fmt.Sprintf("rule %s: %s", err.Category, err.Reason)
}

// Validate checks that every allow-listed package is a package name, plain
// or scoped, that the exclusion rejects and the allow-list re-admits.
func (p Predicate) Validate(c stage.Category) error {
	if p.Test == nil {
		return &PredicateError{Category: c, Reason: "missing test pattern"}
	}
	if len(p.Allow) == 0 {
		return nil
	}
	if p.Exclude == nil || p.Pool == "" {
		return &PredicateError{Category: c, Reason: "allow-list without an exclusion of the dependency pool"}
	}

	seen := make(map[string]struct{}, len(p.Allow))
	for _, pkg := range p.Allow {
		if !packageName(pkg) {
			return &PredicateError{Category: c, Reason: fmt.Sprintf("allow-listed package %q is not a package name", pkg)}
		}
		if pkg == p.Pool {
			return &PredicateError{Category: c, Reason: fmt.Sprintf("allow-listed package %q names the dependency pool", pkg)}
		}
		if _, ok := seen[pkg]; ok {
			return &PredicateError{Category: c, Reason: fmt.Sprintf("allow-listed package %q listed twice", pkg)}
		}
		seen[pkg] = struct{}{}

		sample := p.Pool + "/" + pkg + "/index"
		if !p.Exclude.Match(sample) {
			return &PredicateError{Category: c, Reason: fmt.Sprintf("allow-listed package %q is not excluded in the first place", pkg)}
		}
		if !p.allowed(sample) {
			return &PredicateError{Category: c, Reason: fmt.Sprintf("allow-listed package %q stays excluded", pkg)}
		}
	}
	return nil
}
