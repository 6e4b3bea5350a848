// Package descriptor builds the per-bundle build descriptors handed to the
// bundling engine. A Base holds everything that depends only on the mode and
// the settings; Instantiate specializes a deep copy of it for one plugin.
package descriptor

import (
	"maps"
	"slices"

	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/plugins"
	"github.com/learningequality/bundlegen/internal/roots"
	"github.com/learningequality/bundlegen/internal/rules"
)

// StatsPreset is the engine's console reporting preset.
const StatsPreset = "minimal"

// Extensions are the file suffixes the engine tries when resolving a bare
// module request.
var Extensions = []string{".js", ".vue", ".scss"}

// Descriptor is the complete build configuration of one plugin bundle.
type Descriptor struct {
	Context       string            `json:"context"`
	Mode          mode.Flags        `json:"mode"`
	Entry         map[string]string `json:"entry"`
	Output        Output            `json:"output"`
	Module        Module            `json:"module"`
	Plugins       []plugins.Plugin  `json:"plugins"`
	Optimization  Optimization      `json:"optimization"`
	Resolve       Resolve           `json:"resolve"`
	ResolveLoader ResolveLoader     `json:"resolveLoader"`
	Node          Node              `json:"node"`
	Stats         string            `json:"stats"`
}

type Output struct {
	Path       string `json:"path"`
	PublicPath string `json:"publicPath"`
	Filename   string `json:"filename"`
}

type Module struct {
	Rules []rules.Rule `json:"rules"`
}

// Optimization holds the minimizers, which the engine only runs when
// Minimize is set.
type Optimization struct {
	Minimize   bool             `json:"minimize"`
	Minimizers []plugins.Plugin `json:"minimizer"`
}

type Resolve struct {
	Extensions []string          `json:"extensions"`
	Alias      map[string]string `json:"alias"`
	Modules    []string          `json:"modules"`
}

type ResolveLoader struct {
	Modules []string `json:"modules"`
}

// Node controls the module-scope globals the engine emulates.
type Node struct {
	Filename bool `json:"__filename"`
}

// Clone returns a copy of d sharing no mutable state with it.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.Entry = maps.Clone(d.Entry)
	c.Module.Rules = rules.CloneAll(d.Module.Rules)
	c.Plugins = plugins.CloneAll(d.Plugins)
	c.Optimization.Minimizers = plugins.CloneAll(d.Optimization.Minimizers)
	c.Resolve.Extensions = slices.Clone(d.Resolve.Extensions)
	c.Resolve.Alias = maps.Clone(d.Resolve.Alias)
	c.Resolve.Modules = slices.Clone(d.Resolve.Modules)
	c.ResolveLoader.Modules = slices.Clone(d.ResolveLoader.Modules)
	return &c
}

// Roots returns a copy of the module and loader roots of d.
func (d *Descriptor) Roots() roots.Roots {
	return roots.Roots{Modules: d.Resolve.Modules, Loaders: d.ResolveLoader.Modules}.Clone()
}
