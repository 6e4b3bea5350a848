package descriptor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/plugins"
	"github.com/learningequality/bundlegen/internal/roots"
	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/stage"
)

// Base is the mode-specific template every bundle descriptor is derived
// from. It is never modified after NewBase returns, so it may be shared by
// concurrent Instantiate calls.
type Base struct {
	flags    mode.Flags
	settings stage.Settings
	fsys     fs.FS
	modules  fs.FS
	template *Descriptor
}

// NewBase compiles the rules and plugins of one mode. fsys is rooted at the
// base directory; nil means os.DirFS(settings.BaseDir).
func NewBase(flags mode.Flags, settings stage.Settings, fsys fs.FS) (*Base, error) {
	settings = settings.Normalize()
	if fsys == nil {
		fsys = os.DirFS(settings.BaseDir)
	}

	r := roots.Resolve(settings.BaseDir, settings.DependencyPool)
	modules := r.ModulesFS(roots.Within(fsys, settings.BaseDir))
	rs, err := rules.NewCompiler(stage.NewRegistry(flags, settings)).WithFS(modules).Compile()
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	var buildPlugins, minimizers []plugins.Plugin
	for _, p := range plugins.Assemble(flags, settings) {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		switch p.Layer {
		case plugins.LayerOptimization:
			minimizers = append(minimizers, p)
		default:
			buildPlugins = append(buildPlugins, p)
		}
	}

	return &Base{
		flags:    flags,
		settings: settings,
		fsys:     fsys,
		modules:  modules,
		template: &Descriptor{
			Context:      settings.BaseDir,
			Mode:         flags,
			Module:       Module{Rules: rs},
			Plugins:      buildPlugins,
			Optimization: Optimization{Minimize: flags.Minify(), Minimizers: minimizers},
			Resolve: Resolve{
				Extensions: slices.Clone(Extensions),
				Alias:      map[string]string{},
				Modules:    r.Modules,
			},
			ResolveLoader: ResolveLoader{Modules: r.Loaders},
			Node:          Node{Filename: true},
			Stats:         StatsPreset,
		},
	}, nil
}

func (b *Base) Flags() mode.Flags {
	return b.flags
}

func (b *Base) Settings() stage.Settings {
	return b.settings
}

// Resolve looks a module request up in the module roots the way the engine
// does, returning the path relative to the root it was found in.
func (b *Base) Resolve(request string) (string, error) {
	return roots.Lookup(b.modules, request, b.template.Resolve.Extensions...)
}

// Template returns a copy of the unspecialized descriptor.
func (b *Base) Template() *Descriptor {
	return b.template.Clone()
}

// Instantiate derives the descriptor of one plugin bundle from a deep copy
// of base. The base is left untouched.
func Instantiate(ctx context.Context, base *Base, meta Metadata) (*Descriptor, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := base.checkEntry(meta); err != nil {
		return nil, err
	}

	d := base.template.Clone()
	d.Entry = map[string]string{meta.Name: meta.EntryPath}

	outputDir := meta.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(base.settings.BaseDir, outputDir)
	}
	d.Output = Output{
		Path:       filepath.Join(outputDir, meta.Name),
		PublicPath: path.Join("/", base.settings.PublicPathRoot, meta.Name) + "/",
		Filename:   "[name]-" + meta.Version + ".js",
	}

	replace := plugins.Placeholders(meta.Name, meta.Version)
	for _, list := range [][]plugins.Plugin{d.Plugins, d.Optimization.Minimizers} {
		for i := range list {
			opts := &list[i].Options
			key := opts.CacheKey
			if key != "" {
				var err error
				key, err = ResolveCacheKey(ctx, cmp.Or(base.settings.CacheKey, key), meta)
				if err != nil {
					return nil, &ConfigurationError{Plugin: meta.Name, Field: "cache_key", Reason: "cannot resolve cache key", Err: err}
				}
			}
			opts.Interpolate(replace)
			opts.CacheKey = key
		}
	}
	return d, nil
}

// checkEntry requires the entry path to name an existing file inside the
// base directory.
func (b *Base) checkEntry(meta Metadata) error {
	entry := filepath.Clean(meta.EntryPath)
	if filepath.IsAbs(entry) {
		rel, err := filepath.Rel(b.settings.BaseDir, entry)
		if err != nil {
			return &ConfigurationError{Plugin: meta.Name, Field: "entry_path", Reason: "entry escapes the base directory", Err: err}
		}
		entry = rel
	}
	if !filepath.IsLocal(entry) {
		return &ConfigurationError{Plugin: meta.Name, Field: "entry_path", Reason: fmt.Sprintf("entry %q escapes the base directory", meta.EntryPath)}
	}

	name := filepath.ToSlash(entry)
	fi, err := fs.Stat(b.fsys, name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ConfigurationError{Plugin: meta.Name, Field: "entry_path", Reason: fmt.Sprintf("entry %q does not exist", meta.EntryPath)}
	case err != nil:
		return &ConfigurationError{Plugin: meta.Name, Field: "entry_path", Reason: "cannot stat entry", Err: err}
	case fi.IsDir():
		return &ConfigurationError{Plugin: meta.Name, Field: "entry_path", Reason: fmt.Sprintf("entry %q is a directory", meta.EntryPath)}
	}
	return nil
}
