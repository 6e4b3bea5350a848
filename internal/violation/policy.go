package violation

import (
	"fmt"
	"strings"

	"github.com/learningequality/bundlegen/internal/logging"
	"github.com/learningequality/bundlegen/internal/metrics"
	"github.com/learningequality/bundlegen/internal/mode"
)

// FailedError fails a release build that reported violations.
type FailedError struct {
	Violations []Violation
}

func (err *FailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation violation(s)", len(err.Violations))
	for _, v := range err.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.String())
	}
	return b.String()
}

// Policy decides whether violations are fatal. The decision depends on the
// mode only.
type Policy struct {
	flags mode.Flags
}

func NewPolicy(flags mode.Flags) *Policy {
	return &Policy{flags: flags}
}

// Apply aggregates the violations of all reports. In release mode any
// violation yields a *FailedError; otherwise each one is logged as a warning.
func (p *Policy) Apply(log *logging.Logger, reports ...Report) error {
	var all []Violation
	for _, r := range reports {
		all = append(all, r.Violations...)
	}
	if len(all) == 0 {
		return nil
	}

	severity := string(p.flags.Severity())
	metrics.ViolationCount.WithLabelValues(severity).Add(float64(len(all)))

	if p.flags.FailBuildOnViolation() {
		for _, v := range all {
			log.Errorf("%v", v)
		}
		return &FailedError{Violations: all}
	}

	for _, v := range all {
		log.Warnf("%v", v)
	}
	return nil
}
