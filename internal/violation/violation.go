// Package violation runs the pre-pass validation stages of a rule over one
// asset and decides, from the build mode alone, whether the violations they
// report fail the build.
package violation

import (
	"context"
	"errors"
	"fmt"

	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/stage"
)

// Violation is one finding of a validation stage.
type Violation struct {
	Stage   stage.Name `json:"stage"`
	Path    string     `json:"path"`
	Line    int        `json:"line,omitempty"`
	Column  int        `json:"column,omitempty"`
	Rule    string     `json:"rule,omitempty"`
	Message string     `json:"message"`
}

func (v Violation) String() string {
	loc := v.Path
	if v.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", v.Path, v.Line, v.Column)
	}
	if v.Rule != "" {
		return fmt.Sprintf("%s: %s (%s, %s)", loc, v.Message, v.Stage, v.Rule)
	}
	return fmt.Sprintf("%s: %s (%s)", loc, v.Message, v.Stage)
}

// Result is what a processor returns for one asset. A nil Content leaves the
// asset unchanged for later stages.
type Result struct {
	Content    []byte
	Violations []Violation
}

// Processor is the implementation behind a stage, typically an external
// linter or an expansion step.
type Processor interface {
	Process(ctx context.Context, st stage.Stage, path string, content []byte) (Result, error)
}

type ProcessorFunc func(ctx context.Context, st stage.Stage, path string, content []byte) (Result, error)

func (f ProcessorFunc) Process(ctx context.Context, st stage.Stage, path string, content []byte) (Result, error) {
	return f(ctx, st, path, content)
}

// Report collects the outcome of the pre-pass stages for one asset.
type Report struct {
	Path       string
	Content    []byte
	Violations []Violation
	Err        error
}

// MissingProcessorError is recorded when no processor is registered for a
// stage that applies to the asset.
type MissingProcessorError struct {
	Stage stage.Name
}

func (err *MissingProcessorError) Error() string {
	return fmt.Sprintf("no processor for stage %s", err.Stage)
}

// RunPrePass runs every pre-pass stage of rule that applies to path, in
// sequence order. Each stage sees the content produced by the previous one.
// Violations and processor errors are accumulated; a failing stage does not
// keep later stages from running.
func RunPrePass(ctx context.Context, rule rules.Rule, path string, content []byte, processors map[stage.Name]Processor) (Report, error) {
	if rule.Enforce != stage.PhasePrePass {
		return Report{}, fmt.Errorf("rule %s/%s is not a pre-pass rule", rule.Category, rule.Enforce)
	}

	r := Report{Path: path, Content: content}
	if !rule.Applies(path) {
		return r, nil
	}

	var errs []error
	for _, st := range rule.StagesFor(path) {
		if st.Phase != stage.PhasePrePass {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, ok := processors[st.Name]
		if !ok {
			errs = append(errs, &MissingProcessorError{Stage: st.Name})
			continue
		}
		res, err := p.Process(ctx, st, path, r.Content)
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %s: %w", st.Name, err))
		}
		if res.Content != nil {
			r.Content = res.Content
		}
		for _, v := range res.Violations {
			v.Stage = st.Name
			if v.Path == "" {
				v.Path = path
			}
			r.Violations = append(r.Violations, v)
		}
	}
	r.Err = errors.Join(errs...)
	return r, nil
}
