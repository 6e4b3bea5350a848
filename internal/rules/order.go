package rules

import (
	"fmt"

	"github.com/learningequality/bundlegen/internal/stage"
)

// OrderError reports a rule whose stage order breaks a pipeline invariant.
type OrderError struct {
	Category stage.Category
	Enforce  stage.Phase
	Reason   string
}

func (err *OrderError) Error() string {
	return fmt.Sprintf("rule %s/%s: %s", err.Category, err.Enforce, err.Reason)
}

// CheckOrder verifies the ordering invariants of a compiled rule set:
// sequence numbers count up from 1, pre-pass rules hold only pre-pass
// stages, and markup expansion runs before structural validation, which
// runs before linting.
func CheckOrder(rules []Rule) error {
	for _, r := range rules {
		if len(r.Stages) == 0 {
			return &OrderError{Category: r.Category, Enforce: r.Enforce, Reason: "no stages"}
		}
		for i, s := range r.Stages {
			if s.Seq != i+1 {
				return &OrderError{Category: r.Category, Enforce: r.Enforce, Reason: fmt.Sprintf("stage %s has seq %d at position %d", s.Name, s.Seq, i+1)}
			}
			if (r.Enforce == stage.PhasePrePass) != (s.Phase == stage.PhasePrePass) {
				return &OrderError{Category: r.Category, Enforce: r.Enforce, Reason: fmt.Sprintf("stage %s has phase %s", s.Name, s.Phase)}
			}
		}

		if r.Enforce != stage.PhasePrePass {
			continue
		}
		switch r.Category {
		case stage.CategoryMarkup, stage.CategoryComponent:
			expand, validate := indexOf(r.Stages, stage.InlineMediaExpansion), indexOf(r.Stages, stage.StructuralValidation)
			if expand == -1 || validate == -1 {
				return &OrderError{Category: r.Category, Enforce: r.Enforce, Reason: "expansion and validation stages are required"}
			}
			if expand > validate {
				return &OrderError{Category: r.Category, Enforce: r.Enforce, Reason: "expansion must precede validation"}
			}
			if lint := indexOf(r.Stages, stage.ScriptLint); lint != -1 && lint < validate {
				return &OrderError{Category: r.Category, Enforce: r.Enforce, Reason: "linting must follow validation"}
			}
		}
	}
	return nil
}
