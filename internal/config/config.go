package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/stage"
)

const (
	DefaultLocaleDir = "kolibri/locale"
	DefaultWorkers   = 4
)

// Root is the top-level configuration of a bundlegen run. Unset fields fall
// back to the stock frontend build.
type Root struct {
	BaseDir           string              `json:"base_dir,omitempty"`
	LocaleDir         string              `json:"locale_dir,omitempty"`
	DependencyPool    string              `json:"dependency_pool,omitempty"`
	PublicPathRoot    string              `json:"public_path_root,omitempty"`
	ESLintConfig      string              `json:"eslint_config,omitempty"`
	ESLintRulePaths   []string            `json:"eslint_rule_paths,omitempty"`
	PostCSSConfig     string              `json:"postcss_config,omitempty"`
	PrettierConfig    string              `json:"prettier_config,omitempty"`
	SharedStyleImport string              `json:"shared_style_import,omitempty"`
	InlineLimit       *int64              `json:"inline_limit,omitempty" minimum:"0"`
	TranspileAllow    []string            `json:"transpile_allow,omitempty"`
	GeneratedPattern  string              `json:"generated_pattern,omitempty"`
	CacheKey          string              `json:"cache_key,omitempty"`
	Override          *Override           `json:"override,omitempty"`
	Workers           int                 `json:"workers,omitempty" minimum:"0"`
	Plugins           map[string]*Plugin  `json:"plugins,omitempty"`
	// Checks maps a pre-pass stage or lint plugin to the command that
	// implements it. The file path is appended to the arguments.
	Checks map[string][]string `json:"checks,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Override names the legacy module re-exported through a shim. An empty
// module disables the shim rule.
type Override struct {
	Module string `json:"module"`
	Export string `json:"export"`

	_ struct{} `additionalProperties:"false"`
}

// Plugin is the metadata of one plugin bundle. The name is taken from the
// mapping key.
type Plugin struct {
	Name      string `json:"-"`
	EntryPath string `json:"entry_path"`
	OutputDir string `json:"output_dir"`
	Version   string `json:"version"`

	_ struct{} `additionalProperties:"false"`
}

func (p *Plugin) Metadata() descriptor.Metadata {
	return descriptor.Metadata{
		Name:      p.Name,
		EntryPath: p.EntryPath,
		OutputDir: p.OutputDir,
		Version:   p.Version,
	}
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for the Root struct.
// Plugins are configured as a mapping keyed by name; the keys are copied into
// each entry.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

func (r *Root) unmarshal() error {
	for name := range r.Plugins {
		r.Plugins[name] = cmp.Or(r.Plugins[name], &Plugin{})
		r.Plugins[name].Name = name
	}
	return r.validate()
}

func (r *Root) validate() error {
	if r.GeneratedPattern != "" {
		if _, err := stage.CompilePattern(r.GeneratedPattern); err != nil {
			return fmt.Errorf("invalid generated_pattern: %w", err)
		}
	}
	return nil
}

// Settings converts the configuration into compiler settings. Relative
// paths are resolved against the base directory.
func (r *Root) Settings() stage.Settings {
	s := stage.DefaultSettings(cmp.Or(r.BaseDir, "."))
	s.DependencyPool = cmp.Or(r.DependencyPool, s.DependencyPool)
	s.PublicPathRoot = cmp.Or(r.PublicPathRoot, s.PublicPathRoot)
	s.ESLintConfig = cmp.Or(r.ESLintConfig, s.ESLintConfig)
	if r.ESLintRulePaths != nil {
		s.ESLintRulePaths = r.ESLintRulePaths
	}
	s.PostCSSConfig = cmp.Or(r.PostCSSConfig, s.PostCSSConfig)
	s.PrettierConfig = cmp.Or(r.PrettierConfig, s.PrettierConfig)
	s.SharedStyleImport = cmp.Or(r.SharedStyleImport, s.SharedStyleImport)
	if r.InlineLimit != nil {
		s.InlineLimit = *r.InlineLimit
	}
	if r.TranspileAllow != nil {
		s.TranspileAllow = r.TranspileAllow
	}
	s.GeneratedPattern = cmp.Or(r.GeneratedPattern, s.GeneratedPattern)
	s.CacheKey = r.CacheKey
	if r.Override != nil {
		s.Override = stage.Override{Module: r.Override.Module, Export: r.Override.Export}
	}
	return s.Normalize()
}

// LocalePath returns the absolute locale directory.
func (r *Root) LocalePath() string {
	dir := cmp.Or(r.LocaleDir, DefaultLocaleDir)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(r.Settings().BaseDir, dir)
}

func (r *Root) WorkerCount() int {
	return cmp.Or(r.Workers, DefaultWorkers)
}

// SortedPlugins iterates the configured plugins by name.
func (r *Root) SortedPlugins() iter.Seq2[int, *Plugin] {
	return iterator(r.Plugins, func(p *Plugin) string { return p.Name })
}

func iterator[V any](m map[string]V, name func(V) string) func(func(int, V) bool) {
	names := make([]string, 0, len(m))
	for _, v := range m {
		names = append(names, name(v))
	}

	sort.Strings(names)

	return func(yield func(int, V) bool) {
		for i, name := range names {
			if !yield(i, m[name]) {
				return
			}
		}
	}
}

// CheckSettings compiles the rules of both modes so that invalid patterns
// and allow-lists are reported before any plugin is built. A nil fsys
// reads the base directory on disk.
func (r *Root) CheckSettings(fsys fs.FS) error {
	s := r.Settings()
	for _, release := range []bool{false, true} {
		if _, err := rules.Compile(mode.New(release), s, fsys); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
	}
	return nil
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	return rootSchema.Validate(config)
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}
