package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"

	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/roots"
	"github.com/learningequality/bundlegen/internal/stage"
)

var (
	markupTest            = stage.MustCompilePattern(`\.html$`)
	componentTest         = stage.MustCompilePattern(`\.vue$`)
	scriptTest            = stage.MustCompilePattern(`\.js$`)
	styleTest             = stage.MustCompilePattern(`\.css$`)
	preprocessedStyleTest = stage.MustCompilePattern(`\.s[ac]ss$`)
	mediaTest             = stage.MustCompilePattern(`\.(png|jpe?g|gif|svg)$`)
	fontTest              = stage.MustCompilePattern(`\.(eot|woff|ttf|woff2)$`)
)

// Compiler turns the stage registry of one mode into the ordered rule list
// consumed by the bundling engine.
type Compiler struct {
	reg  *stage.Registry
	fsys fs.FS
}

func NewCompiler(reg *stage.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// WithFS sets the module resolution file system, as built by
// roots.Roots.ModulesFS, in which the legacy override module is looked up.
// Defaults to the module roots opened with os.DirFS.
func (c *Compiler) WithFS(fsys fs.FS) *Compiler {
	c.fsys = fsys
	return c
}

// Compile compiles the rules of one mode. fsys is rooted at the base
// directory; the override module is looked up in the module roots layered
// over it.
func Compile(flags mode.Flags, settings stage.Settings, fsys fs.FS) ([]Rule, error) {
	c := NewCompiler(stage.NewRegistry(flags, settings))
	if fsys != nil {
		s := c.reg.Settings()
		c.WithFS(roots.Resolve(s.BaseDir, s.DependencyPool).ModulesFS(roots.Within(fsys, s.BaseDir)))
	}
	return c.Compile()
}

// Compile emits one rule per (category, phase) pair in fixed priority order.
// Errors only stem from invalid settings; the output is deterministic for
// identical flags and settings.
func (c *Compiler) Compile() ([]Rule, error) {
	settings := c.reg.Settings()

	pool := `(^|/)` + regexp.QuoteMeta(settings.DependencyPool) + `/`
	poolExclude, err := stage.CompilePattern(pool)
	if err != nil {
		return nil, err
	}
	// Component files are linted by their own pre-pass rule; linting the
	// script blocks extracted from them again would see inlined markup.
	scriptLintExclude, err := stage.CompilePattern(pool + `|\.vue`)
	if err != nil {
		return nil, err
	}

	var generated *stage.Pattern
	if settings.GeneratedPattern != "" {
		generated, err = stage.CompilePattern(settings.GeneratedPattern)
		if err != nil {
			return nil, fmt.Errorf("generated pattern: %w", err)
		}
	}

	componentPre := c.reg.Chain(stage.CategoryComponent, stage.PhasePrePass)
	for i := range componentPre {
		if componentPre[i].Name == stage.ScriptLint {
			componentPre[i].Unless = generated
		}
	}

	rules := []Rule{
		{
			Category:  stage.CategoryMarkup,
			Enforce:   stage.PhasePrePass,
			Predicate: Predicate{Test: markupTest, Exclude: poolExclude},
			Stages:    c.reg.Chain(stage.CategoryMarkup, stage.PhasePrePass),
		},
		{
			Category:  stage.CategoryComponent,
			Enforce:   stage.PhasePrePass,
			Predicate: Predicate{Test: componentTest, Exclude: poolExclude},
			Stages:    componentPre,
		},
		{
			Category:  stage.CategoryScript,
			Enforce:   stage.PhasePrePass,
			Predicate: Predicate{Test: scriptTest, Exclude: scriptLintExclude},
			Stages:    c.reg.Chain(stage.CategoryScript, stage.PhasePrePass),
		},
		{
			Category:  stage.CategoryComponent,
			Enforce:   stage.PhaseTransform,
			Predicate: Predicate{Test: componentTest},
			Stages:    c.reg.Chain(stage.CategoryComponent, stage.PhaseTransform),
		},
		{
			Category: stage.CategoryScript,
			Enforce:  stage.PhaseTransform,
			Predicate: Predicate{
				Test:    scriptTest,
				Exclude: poolExclude,
				Pool:    settings.DependencyPool,
				Allow:   slices.Clone(settings.TranspileAllow),
			},
			Stages: c.reg.Chain(stage.CategoryScript, stage.PhaseTransform),
		},
		{
			Category:  stage.CategoryStyle,
			Enforce:   stage.PhaseTransform,
			Predicate: Predicate{Test: styleTest},
			Stages:    c.reg.Chain(stage.CategoryStyle, stage.PhaseTransform),
		},
		{
			Category:  stage.CategoryPreprocessedStyle,
			Enforce:   stage.PhaseTransform,
			Predicate: Predicate{Test: preprocessedStyleTest},
			Stages:    c.reg.Chain(stage.CategoryPreprocessedStyle, stage.PhaseTransform),
		},
		{
			Category:  stage.CategoryMedia,
			Enforce:   stage.PhaseEmit,
			Predicate: Predicate{Test: mediaTest},
			Stages:    c.reg.Chain(stage.CategoryMedia, stage.PhaseEmit),
		},
		{
			Category:  stage.CategoryFont,
			Enforce:   stage.PhaseEmit,
			Predicate: Predicate{Test: fontTest},
			Stages:    c.reg.Chain(stage.CategoryFont, stage.PhaseEmit),
		},
	}

	override, err := c.override(settings)
	if err != nil {
		return nil, err
	}
	if override != nil {
		rules = append(rules, *override)
	}

	for _, r := range rules {
		if err := r.Predicate.Validate(r.Category); err != nil {
			return nil, err
		}
	}
	if err := CheckOrder(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// override compiles the module shim rule if the module is installed in the
// dependency pool. A missing module is not an error.
func (c *Compiler) override(settings stage.Settings) (*Rule, error) {
	if settings.Override.Module == "" || settings.Override.Export == "" {
		return nil, nil
	}

	fsys := c.fsys
	if fsys == nil {
		fsys = roots.Resolve(settings.BaseDir, settings.DependencyPool).ModulesFS(nil)
	}

	_, err := roots.Lookup(fsys, settings.Override.Module, ".js")
	var nf *roots.NotFoundError
	switch {
	case errors.As(err, &nf):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("look up override module %q: %w", settings.Override.Module, err)
	}

	test, err := stage.CompilePattern(regexp.QuoteMeta(settings.Override.Module))
	if err != nil {
		return nil, err
	}
	return &Rule{
		Category:  stage.CategorySpecialOverride,
		Enforce:   stage.PhaseTransform,
		Predicate: Predicate{Test: test},
		Stages:    c.reg.Chain(stage.CategorySpecialOverride, stage.PhaseTransform),
	}, nil
}

// Flags returns the mode the compiler was built for.
func (c *Compiler) Flags() mode.Flags {
	return c.reg.Flags()
}
