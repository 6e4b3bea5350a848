package stage

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/learningequality/bundlegen/internal/mode"
)

const (
	DefaultDependencyPool = "node_modules"
	DefaultInlineLimit    = 10000
	DefaultFilename       = "[name].[ext]?[hash]"
)

// Settings are the mode-independent inputs of the pipeline. Paths are
// absolute once passed through Normalize.
type Settings struct {
	BaseDir           string
	DependencyPool    string
	PublicPathRoot    string
	ESLintConfig      string
	ESLintRulePaths   []string
	PostCSSConfig     string
	PrettierConfig    string
	SharedStyleImport string
	InlineLimit       int64
	TranspileAllow    []string
	GeneratedPattern  string
	CacheKey          string
	Override          Override
}

// Override names the legacy module whose symbol is re-exported by a shim.
type Override struct {
	Module string
	Export string
}

// DefaultSettings returns the settings of the stock frontend build rooted at
// baseDir.
func DefaultSettings(baseDir string) Settings {
	return Settings{
		BaseDir:           baseDir,
		DependencyPool:    DefaultDependencyPool,
		PublicPathRoot:    "static",
		ESLintConfig:      ".eslintrc.js",
		ESLintRulePaths:   []string{"frontend_build/src/custom-eslint-rules"},
		PostCSSConfig:     "postcss.config.js",
		PrettierConfig:    ".prettier",
		SharedStyleImport: "~kolibri.styles.keenVars",
		InlineLimit:       DefaultInlineLimit,
		TranspileAllow:    []string{"keen-ui"},
		GeneratedPattern:  `(^|/)(node_modules|generated)/`,
		Override:          Override{Module: "fg-loadcss/src/onloadCSS", Export: "onloadCSS"},
	}.Normalize()
}

// Normalize fills defaults and resolves relative config paths against
// BaseDir. It returns a copy.
func (s Settings) Normalize() Settings {
	s.BaseDir = cmp.Or(s.BaseDir, ".")
	if abs, err := filepath.Abs(s.BaseDir); err == nil {
		s.BaseDir = abs
	}
	s.DependencyPool = cmp.Or(s.DependencyPool, DefaultDependencyPool)
	s.ESLintConfig = s.abs(s.ESLintConfig)
	s.PostCSSConfig = s.abs(s.PostCSSConfig)
	s.PrettierConfig = s.abs(s.PrettierConfig)

	rulePaths := make([]string, len(s.ESLintRulePaths))
	for i, p := range s.ESLintRulePaths {
		rulePaths[i] = s.abs(p)
	}
	s.ESLintRulePaths = rulePaths
	s.TranspileAllow = slices.Clone(s.TranspileAllow)
	return s
}

func (s Settings) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.BaseDir, p)
}

// PoolDir is the absolute path of the shared dependency pool.
func (s Settings) PoolDir() string {
	return filepath.Join(s.BaseDir, s.DependencyPool)
}

type chainKey struct {
	category Category
	phase    Phase
}

// chains lists the stage sequence of every (category, phase) pair that
// produces a rule. Position in the slice becomes the stage's Seq.
var chains = map[chainKey][]Name{
	{CategoryMarkup, PhasePrePass}:              {InlineMediaExpansion, StructuralValidation},
	{CategoryComponent, PhasePrePass}:           {InlineMediaExpansion, StructuralValidation, ScriptLint},
	{CategoryScript, PhasePrePass}:              {ScriptLint},
	{CategoryComponent, PhaseTransform}:         {ComponentCompile},
	{CategoryScript, PhaseTransform}:            {Downlevel},
	{CategoryStyle, PhaseTransform}:             {StyleExtract, StyleLoad, StylePostProcess},
	{CategoryPreprocessedStyle, PhaseTransform}: {StyleExtract, StyleLoad, StylePostProcess, StylePreprocess},
	{CategoryMedia, PhaseEmit}:                  {AssetEmit},
	{CategoryFont, PhaseEmit}:                   {AssetEmit},
	{CategorySpecialOverride, PhaseTransform}:   {ModuleShim},
}

// Registry maps asset categories to their stage chains for one mode.
type Registry struct {
	flags    mode.Flags
	settings Settings
}

func NewRegistry(flags mode.Flags, settings Settings) *Registry {
	return &Registry{flags: flags, settings: settings}
}

func (r *Registry) Flags() mode.Flags {
	return r.flags
}

func (r *Registry) Settings() Settings {
	return r.settings
}

// Chain returns freshly allocated stages for the category in the given
// phase, or nil if the pair has no rule.
func (r *Registry) Chain(c Category, p Phase) []Stage {
	names := chains[chainKey{category: c, phase: p}]
	if len(names) == 0 {
		return nil
	}
	stages := make([]Stage, 0, len(names))
	for i, n := range names {
		s := r.stage(c, n)
		s.Seq = i + 1
		stages = append(stages, s)
	}
	return stages
}

func (r *Registry) stage(c Category, n Name) Stage {
	f := r.flags
	switch n {
	case InlineMediaExpansion:
		// handles <mat-svg/>, <ion-svg/>, <iconic-svg/> and <file-svg/>
		return Stage{Name: n, Loader: "svg-icon-inline-loader", Phase: PhasePrePass}
	case StructuralValidation:
		return Stage{Name: n, Loader: "htmlhint-loader", Phase: PhasePrePass, Options: Options{
			FailOnError: f.FailBuildOnViolation(),
			EmitAs:      f.Severity(),
		}}
	case ScriptLint:
		return Stage{Name: n, Loader: "eslint-loader", Phase: PhasePrePass, Options: Options{
			FailOnError: f.FailBuildOnViolation(),
			EmitError:   f.FailBuildOnViolation(),
			EmitWarning: f.EmitWarnings(),
			Fix:         f.AutoFixOnSave(),
			ConfigFile:  r.settings.ESLintConfig,
			RulePaths:   slices.Clone(r.settings.ESLintRulePaths),
		}}
	case ComponentCompile:
		preserve := false
		return Stage{Name: n, Loader: "vue-loader", Phase: PhaseTransform, Options: Options{
			PreserveWhitespace: &preserve,
		}}
	case Downlevel:
		return Stage{Name: n, Loader: "buble-loader", Phase: PhaseTransform, Options: Options{
			ObjectAssign: "Object.assign",
		}}
	case StyleExtract:
		return Stage{Name: n, Loader: "mini-css-extract-loader", Phase: PhaseEmit}
	case StyleLoad:
		return Stage{Name: n, Loader: "css-loader", Phase: PhaseTransform, Options: Options{
			Minimize:  f.Minify(),
			SourceMap: f.GenerateSourceMaps(),
		}}
	case StylePostProcess:
		return Stage{Name: n, Loader: "postcss-loader", Phase: PhaseTransform, Options: Options{
			ConfigFile: r.settings.PostCSSConfig,
			SourceMap:  f.GenerateSourceMaps(),
		}}
	case StylePreprocess:
		return Stage{Name: n, Loader: "sass-loader", Phase: PhaseTransform, Options: Options{
			PrependData: fmt.Sprintf("@import %q;", r.settings.SharedStyleImport),
		}}
	case AssetEmit:
		s := Stage{Name: n, Loader: "url-loader", Phase: PhaseEmit, Options: Options{
			FilenamePattern: DefaultFilename,
		}}
		if c == CategoryMedia {
			s.Options.InlineLimit = r.settings.InlineLimit
		}
		return s
	case ModuleShim:
		return Stage{Name: n, Loader: "exports-loader", Phase: PhaseTransform, Options: Options{
			ExportName: r.settings.Override.Export,
		}}
	}
	panic(fmt.Sprintf("stage: no definition for %q", n))
}
