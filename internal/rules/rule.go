package rules

import (
	"slices"

	"github.com/learningequality/bundlegen/internal/stage"
)

// Rule pairs a predicate with the ordered stages it applies and the phase
// in which the bundling engine enforces them.
type Rule struct {
	Category  stage.Category `json:"category"`
	Enforce   stage.Phase    `json:"enforce"`
	Predicate Predicate      `json:"predicate"`
	Stages    []stage.Stage  `json:"stages"`
}

func (r Rule) Clone() Rule {
	r.Predicate = r.Predicate.Clone()
	stages := make([]stage.Stage, len(r.Stages))
	for i := range r.Stages {
		stages[i] = r.Stages[i].Clone()
	}
	r.Stages = stages
	return r
}

func (r Rule) Applies(path string) bool {
	return r.Predicate.Matches(path)
}

// StagesFor returns the stages run for the asset at path, in sequence order.
func (r Rule) StagesFor(path string) []stage.Stage {
	if !r.Applies(path) {
		return nil
	}
	var stages []stage.Stage
	for _, s := range r.Stages {
		if s.Applies(path) {
			stages = append(stages, s)
		}
	}
	return stages
}

// Match returns the rules applying to path, keeping their order.
func Match(rules []Rule, path string) []Rule {
	var matched []Rule
	for _, r := range rules {
		if r.Applies(path) {
			matched = append(matched, r)
		}
	}
	return matched
}

// CloneAll deep-copies a rule list.
func CloneAll(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i := range rules {
		out[i] = rules[i].Clone()
	}
	return out
}

func indexOf(stages []stage.Stage, n stage.Name) int {
	return slices.IndexFunc(stages, func(s stage.Stage) bool { return s.Name == n })
}
