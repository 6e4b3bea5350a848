// Package plugins assembles the cross-cutting build plugins of a descriptor:
// format checking, style linting, style extraction and the optimization
// passes. Every mode-dependent option is taken from mode.Flags.
package plugins

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/stage"
)

// Placeholders replaced per bundle by the instantiator.
const (
	VersionPlaceholder = "[version]"
	BundlePlaceholder  = "[bundle]"
)

// Layer separates per-build plugins from the optimization passes, which the
// engine runs apart from the per-file rule pipeline.
type Layer string

const (
	LayerPlugin       Layer = "plugin"
	LayerOptimization Layer = "optimization"
)

type Name string

const (
	FormatCheck  Name = "prettier-frontend"
	StyleLint    Name = "stylelint"
	StyleExtract Name = "mini-css-extract"
	Minify       Name = "uglifyjs"
	OptimizeCSS  Name = "optimize-css-assets"
)

// Plugin is one configured plugin instance. Inactive plugins are listed so
// the descriptor has the same shape in every mode.
type Plugin struct {
	Name    Name    `json:"name"`
	Layer   Layer   `json:"layer"`
	Active  bool    `json:"active"`
	Options Options `json:"options,omitzero"`

	globs []glob.Glob
}

// Options enumerates every recognized plugin option.
type Options struct {
	Extensions           []string `json:"extensions,omitempty"`
	Files                []string `json:"files,omitempty"`
	LogLevel             string   `json:"logLevel,omitempty"`
	ConfigFile           string   `json:"configFile,omitempty"`
	Fix                  bool     `json:"fix,omitempty"`
	LintDirtyModulesOnly bool     `json:"lintDirtyModulesOnly,omitempty"`
	EmitErrors           bool     `json:"emitErrors,omitempty"`
	Filename             string   `json:"filename,omitempty"`
	Cache                bool     `json:"cache,omitempty"`
	CacheKey             string   `json:"cacheKey,omitempty"`
	Parallel             bool     `json:"parallel,omitempty"`
	SourceMap            bool     `json:"sourceMap,omitempty"`
}

func (o Options) Clone() Options {
	o.Extensions = slices.Clone(o.Extensions)
	o.Files = slices.Clone(o.Files)
	return o
}

func (p Plugin) Clone() Plugin {
	p.Options = p.Options.Clone()
	return p
}

// Interpolate rewrites the string options that may embed per-bundle
// placeholders.
func (o *Options) Interpolate(replace func(string) string) {
	o.Filename = replace(o.Filename)
	o.CacheKey = replace(o.CacheKey)
	o.ConfigFile = replace(o.ConfigFile)
}

// Placeholders returns a replacer for the bundle name and version.
func Placeholders(bundle, version string) func(string) string {
	r := strings.NewReplacer(BundlePlaceholder, bundle, VersionPlaceholder, version)
	return r.Replace
}

// Assemble returns the plugins of one mode: the plugin layer first, then the
// optimization layer.
func Assemble(flags mode.Flags, settings stage.Settings) []Plugin {
	ps := []Plugin{
		{
			Name:   FormatCheck,
			Layer:  LayerPlugin,
			Active: true,
			Options: Options{
				Extensions: []string{".js", ".vue", ".scss"},
				LogLevel:   "warn",
				ConfigFile: settings.PrettierConfig,
				Fix:        flags.AutoFixOnSave(),
			},
		},
		{
			Name:   StyleLint,
			Layer:  LayerPlugin,
			Active: true,
			Options: Options{
				Files:                []string{"**/*.scss", "**/*.vue"},
				Fix:                  true,
				LintDirtyModulesOnly: true,
				EmitErrors:           flags.FailBuildOnViolation(),
			},
		},
		{
			Name:   StyleExtract,
			Layer:  LayerPlugin,
			Active: true,
			Options: Options{
				Filename: "[name]-" + VersionPlaceholder + ".css",
			},
		},
		{
			Name:   Minify,
			Layer:  LayerOptimization,
			Active: flags.Minify(),
			Options: Options{
				Cache:     true,
				CacheKey:  BundlePlaceholder + "-" + VersionPlaceholder,
				Parallel:  true,
				SourceMap: false,
			},
		},
		{
			Name:   OptimizeCSS,
			Layer:  LayerOptimization,
			Active: flags.Minify(),
		},
	}
	for i := range ps {
		for _, pattern := range ps[i].Options.Files {
			ps[i].globs = append(ps[i].globs, glob.MustCompile(pattern, '/'))
		}
	}
	return ps
}

// CloneAll deep-copies a plugin list.
func CloneAll(ps []Plugin) []Plugin {
	if ps == nil {
		return nil
	}
	out := make([]Plugin, len(ps))
	for i := range ps {
		out[i] = ps[i].Clone()
	}
	return out
}

// Validate compiles the plugin's file globs and keeps them for Matches.
// Call it again after changing Options.Files.
func (p *Plugin) Validate() error {
	globs := make([]glob.Glob, 0, len(p.Options.Files))
	for _, pattern := range p.Options.Files {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("plugin %s: failed to compile file pattern %q: %w", p.Name, pattern, err)
		}
		globs = append(globs, g)
	}
	p.globs = globs
	return nil
}

// Matches reports whether the plugin handles the file at path, by file glob
// or extension. Globs are those compiled by Assemble or Validate; a plugin
// with neither globs nor extensions handles nothing.
func (p Plugin) Matches(path string) bool {
	for _, g := range p.globs {
		if g.Match(path) {
			return true
		}
	}
	return slices.ContainsFunc(p.Options.Extensions, func(ext string) bool {
		return strings.HasSuffix(path, ext)
	})
}
