package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/logging"
	"github.com/learningequality/bundlegen/internal/metrics"
	"github.com/learningequality/bundlegen/internal/progress"
)

type BuildState int

const (
	BuildStateSuccess BuildState = iota
	BuildStateConfigurationError
	BuildStateWriteFailed
	BuildStateInternalError
)

func (s BuildState) String() string {
	switch s {
	case BuildStateSuccess:
		return "success"
	case BuildStateConfigurationError:
		return "configuration_error"
	case BuildStateWriteFailed:
		return "write_failed"
	default:
		return "internal_error"
	}
}

// Result is the outcome of building one plugin descriptor.
type Result struct {
	Plugin     string
	Version    string
	State      BuildState
	Output     string
	Descriptor *descriptor.Descriptor
	Err        error
}

// PluginWorker builds the descriptor of one plugin from the shared base
// and writes it out. Workers never modify the base.
type PluginWorker struct {
	base   *descriptor.Base
	meta   descriptor.Metadata
	fs     afero.Fs
	outDir string
	format Format
	log    *logging.Logger
	bar    *progress.Bar
}

func NewPluginWorker(base *descriptor.Base, meta descriptor.Metadata, logger *logging.Logger, bar *progress.Bar) *PluginWorker {
	return &PluginWorker{
		base: base,
		meta: meta,
		fs:   afero.NewOsFs(),
		log:  logger,
		bar:  bar,
	}
}

// WithOutput sets the directory descriptors are written to. An empty dir
// keeps the descriptor in memory only.
func (w *PluginWorker) WithOutput(fsys afero.Fs, dir string, format Format) *PluginWorker {
	w.fs = fsys
	w.outDir = dir
	w.format = format
	return w
}

// Execute instantiates and writes the descriptor.
func (w *PluginWorker) Execute(ctx context.Context) Result {
	startTime := time.Now()
	defer w.bar.Add(1)

	res := Result{Plugin: w.meta.Name, Version: w.meta.Version}

	d, err := descriptor.Instantiate(ctx, w.base, w.meta)
	if err != nil {
		var cerr *descriptor.ConfigurationError
		if errors.As(err, &cerr) {
			w.log.Warnf("invalid configuration for plugin %q: %v", w.meta.Name, err)
			return w.report(res, BuildStateConfigurationError, startTime, err)
		}
		w.log.Warnf("failed to build descriptor for plugin %q: %v", w.meta.Name, err)
		return w.report(res, BuildStateInternalError, startTime, err)
	}
	res.Descriptor = d

	if w.outDir != "" {
		bs, err := Encode(d, w.format)
		if err != nil {
			return w.report(res, BuildStateInternalError, startTime, fmt.Errorf("plugin %s: %w", w.meta.Name, err))
		}
		res.Output = filepath.Join(w.outDir, w.meta.Name+w.format.Ext())
		if err := w.fs.MkdirAll(w.outDir, 0o755); err != nil {
			return w.report(res, BuildStateWriteFailed, startTime, fmt.Errorf("plugin %s: create output directory: %w", w.meta.Name, err))
		}
		if err := afero.WriteFile(w.fs, res.Output, bs, 0o644); err != nil {
			w.log.Warnf("failed to write descriptor for plugin %q: %v", w.meta.Name, err)
			return w.report(res, BuildStateWriteFailed, startTime, fmt.Errorf("plugin %s: write descriptor: %w", w.meta.Name, err))
		}
	}

	w.log.Debugf("Descriptor for plugin %q built.", w.meta.Name)
	return w.report(res, BuildStateSuccess, startTime, nil)
}

func (w *PluginWorker) report(res Result, state BuildState, startTime time.Time, err error) Result {
	res.State = state
	res.Err = err
	if state == BuildStateSuccess {
		metrics.DescriptorBuilt(w.meta.Name, startTime)
	} else {
		metrics.DescriptorBuildFailed(w.meta.Name, state.String())
	}
	return res
}
