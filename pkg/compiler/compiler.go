package compiler

import (
	"context"
	"io/fs"

	"github.com/learningequality/bundlegen/internal/check"
	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/locale"
	"github.com/learningequality/bundlegen/internal/logging"
	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/plugins"
	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/stage"
	"github.com/learningequality/bundlegen/internal/violation"
)

type (
	Flags              = mode.Flags
	Settings           = stage.Settings
	Rule               = rules.Rule
	Base               = descriptor.Base
	Descriptor         = descriptor.Descriptor
	Metadata           = descriptor.Metadata
	ConfigurationError = descriptor.ConfigurationError

	Stage         = stage.Stage
	StageName     = stage.Name
	Plugin        = plugins.Plugin
	ChangeTracker = plugins.ChangeTracker

	Violation     = violation.Violation
	Result        = violation.Result
	Processor     = violation.Processor
	ProcessorFunc = violation.ProcessorFunc
	Report        = violation.Report
	Policy        = violation.Policy
	FailedError   = violation.FailedError
	Logger        = logging.Logger
	LoggerConfig  = logging.Config

	Checker = check.Checker
	Command = check.Command
)

// PhasePrePass is the phase of the validation rules RunPrePass accepts.
const PhasePrePass = stage.PhasePrePass

// ResolveMode reads NODE_ENV from the process environment.
func ResolveMode() Flags {
	return mode.FromEnvironment()
}

func DefaultSettings(baseDir string) Settings {
	return stage.DefaultSettings(baseDir)
}

// NewBase compiles the mode-specific base. fsys is rooted at the base
// directory; nil reads the directory on disk.
func NewBase(flags Flags, settings Settings, fsys fs.FS) (*Base, error) {
	return descriptor.NewBase(flags, settings, fsys)
}

func Instantiate(ctx context.Context, base *Base, meta Metadata) (*Descriptor, error) {
	return descriptor.Instantiate(ctx, base, meta)
}

func Match(rs []Rule, path string) []Rule {
	return rules.Match(rs, path)
}

// EnsureLocaleDir creates the locale directory on disk unless it exists.
func EnsureLocaleDir(path string) error {
	return locale.New(nil).Ensure(path)
}

// RunPrePass runs the pre-pass stages of rule that apply to the asset at
// path, threading its content through the registered processors.
func RunPrePass(ctx context.Context, rule Rule, path string, content []byte, processors map[StageName]Processor) (Report, error) {
	return violation.RunPrePass(ctx, rule, path, content, processors)
}

// NewPolicy returns the violation policy of a mode: fatal in release,
// warnings otherwise.
func NewPolicy(flags Flags) *Policy {
	return violation.NewPolicy(flags)
}

func NewLogger(cfg LoggerConfig) *Logger {
	return logging.NewLogger(cfg)
}

func NewNopLogger() *Logger {
	return logging.NewNop()
}

// NewChangeTracker remembers up to size checked files for plugins that lint
// dirty modules only.
func NewChangeTracker(size int) (*ChangeTracker, error) {
	return plugins.NewChangeTracker(size)
}

// Select returns the files p should check, skipping files t saw unchanged
// when the plugin lints dirty modules only.
func Select(p Plugin, t *ChangeTracker, files map[string][]byte) []string {
	return plugins.Select(p, t, files)
}

// NewChecker runs the pre-pass stages and lint plugins of base over a source
// tree with registered processors.
func NewChecker(base *Base) *Checker {
	return check.New(base)
}

// NewCommand wraps an external linter as a Processor.
func NewCommand(dir string, args ...string) *Command {
	return check.NewCommand(dir, args...)
}
