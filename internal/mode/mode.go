// Package mode derives the release/development toggle from the process
// environment. Every mode-dependent option in the build descriptor is computed
// from the single boolean held by Flags.
package mode

import (
	"encoding/json"
	"os"
)

const (
	// EnvVar is the environment variable selecting the build mode.
	EnvVar = "NODE_ENV"

	// Production is the only EnvVar value that selects release mode.
	Production = "production"
)

// Severity is how a validation finding is reported.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Flags holds the release toggle. The derived flags are methods so that no
// caller can set them independently of it.
type Flags struct {
	release bool
}

func New(release bool) Flags {
	return Flags{release: release}
}

// Resolve reads EnvVar through getenv. A nil getenv reads the process
// environment. Any value other than Production, including an unset variable,
// selects development mode.
func Resolve(getenv func(string) string) Flags {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Flags{release: getenv(EnvVar) == Production}
}

func FromEnvironment() Flags {
	return Resolve(os.Getenv)
}

func (f Flags) Release() bool { return f.release }

func (f Flags) GenerateSourceMaps() bool { return !f.release }

func (f Flags) FailBuildOnViolation() bool { return f.release }

func (f Flags) AutoFixOnSave() bool { return !f.release }

func (f Flags) EmitWarnings() bool { return !f.release }

func (f Flags) Minify() bool { return f.release }

func (f Flags) Severity() Severity {
	if f.release {
		return SeverityError
	}
	return SeverityWarning
}

func (f Flags) String() string {
	if f.release {
		return "production"
	}
	return "development"
}

type flagsJSON struct {
	Release              bool `json:"release"`
	GenerateSourceMaps   bool `json:"generateSourceMaps"`
	FailBuildOnViolation bool `json:"failBuildOnViolation"`
	AutoFixOnSave        bool `json:"autoFixOnSave"`
}

// MarshalJSON lists the derived flags alongside the release toggle so the
// consumer does not have to recompute them.
func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(flagsJSON{
		Release:              f.release,
		GenerateSourceMaps:   f.GenerateSourceMaps(),
		FailBuildOnViolation: f.FailBuildOnViolation(),
		AutoFixOnSave:        f.AutoFixOnSave(),
	})
}

// UnmarshalJSON only honors the release toggle; derived fields are recomputed.
func (f *Flags) UnmarshalJSON(bs []byte) error {
	var raw flagsJSON
	if err := json.Unmarshal(bs, &raw); err != nil {
		return err
	}
	*f = Flags{release: raw.Release}
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (f Flags) MarshalYAML() (any, error) {
	return map[string]bool{
		"release":              f.release,
		"generateSourceMaps":   f.GenerateSourceMaps(),
		"failBuildOnViolation": f.FailBuildOnViolation(),
		"autoFixOnSave":        f.AutoFixOnSave(),
	}, nil
}
