// Package service drives a full build: it provisions the locale directory,
// compiles the base descriptor of the current mode and instantiates one
// descriptor per configured plugin.
package service

import (
	"cmp"
	"context"
	"errors"
	"io"
	"io/fs"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/learningequality/bundlegen/internal/config"
	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/locale"
	"github.com/learningequality/bundlegen/internal/logging"
	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/progress"
)

type Service struct {
	config   *config.Root
	flags    mode.Flags
	fs       afero.Fs
	srcFS    fs.FS
	records  []map[string]any
	outDir   string
	format   Format
	log      *logging.Logger
	progress io.Writer
	summary  io.Writer
}

func New() *Service {
	return &Service{
		config: &config.Root{},
		flags:  mode.FromEnvironment(),
		fs:     afero.NewOsFs(),
		log:    logging.NewNop(),
	}
}

func (s *Service) WithConfig(cfg *config.Root) *Service {
	s.config = cfg
	return s
}

func (s *Service) WithFlags(flags mode.Flags) *Service {
	s.flags = flags
	return s
}

// WithFS sets the file system used for the locale directory and the
// descriptor files.
func (s *Service) WithFS(fsys afero.Fs) *Service {
	s.fs = fsys
	return s
}

// WithSourceFS sets the file system rooted at the base directory that entry
// paths and the override module are looked up in. Defaults to the base
// directory on disk.
func (s *Service) WithSourceFS(fsys fs.FS) *Service {
	s.srcFS = fsys
	return s
}

// WithRecords adds raw discovery records, built after the configured
// plugins.
func (s *Service) WithRecords(records []map[string]any) *Service {
	s.records = records
	return s
}

func (s *Service) WithOutput(dir string, format Format) *Service {
	s.outDir = dir
	s.format = format
	return s
}

func (s *Service) WithLogger(logger *logging.Logger) *Service {
	s.log = logger
	return s
}

// WithProgress renders a progress bar to w while descriptors are built.
func (s *Service) WithProgress(w io.Writer) *Service {
	s.progress = w
	return s
}

// WithSummary prints a result table to w after the run.
func (s *Service) WithSummary(w io.Writer) *Service {
	s.summary = w
	return s
}

// Run builds every plugin. Provisioning and base compilation failures abort
// the run. Per-plugin failures are recorded in the results and joined into
// the returned error without cancelling other plugins.
func (s *Service) Run(ctx context.Context) ([]Result, error) {
	if err := locale.New(s.fs).Ensure(s.config.LocalePath()); err != nil {
		return nil, err
	}

	settings := s.config.Settings()
	base, err := descriptor.NewBase(s.flags, settings, s.srcFS)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("compiled %d rules in %s mode", len(base.Template().Module.Rules), s.flags)

	results := make([]Result, 0, len(s.config.Plugins)+len(s.records))
	var metas []descriptor.Metadata
	seen := map[string]bool{}
	add := func(m descriptor.Metadata) {
		if seen[m.Name] {
			err := &descriptor.ConfigurationError{Plugin: m.Name, Field: "name", Reason: "duplicate plugin"}
			results = append(results, Result{Plugin: m.Name, Version: m.Version, State: BuildStateConfigurationError, Err: err})
			return
		}
		seen[m.Name] = true
		metas = append(metas, m)
	}
	for _, p := range s.config.SortedPlugins() {
		add(p.Metadata())
	}
	for _, raw := range s.records {
		m, err := descriptor.DecodeMetadata(raw)
		if err != nil {
			name, _ := raw["name"].(string)
			results = append(results, Result{Plugin: name, State: BuildStateConfigurationError, Err: err})
			continue
		}
		add(m)
	}

	var bar *progress.Bar
	if s.progress != nil {
		bar = progress.New(s.progress, len(metas), "building descriptors")
	}

	built := make([]Result, len(metas))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.WorkerCount())
	for i, m := range metas {
		w := NewPluginWorker(base, m, s.log.With("plugin", m.Name), bar)
		if s.outDir != "" {
			w = w.WithOutput(s.fs, s.outDir, s.format)
		}
		g.Go(func() error {
			built[i] = w.Execute(ctx)
			return nil
		})
	}
	_ = g.Wait()
	bar.Finish()

	results = append(results, built...)
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Plugin, b.Plugin)
	})

	if s.summary != nil {
		if err := WriteSummary(s.summary, results); err != nil {
			return results, err
		}
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

// WriteSummary renders one table row per result.
func WriteSummary(w io.Writer, results []Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Plugin", "Version", "Status", "Output")
	for _, r := range results {
		output := r.Output
		if r.Err != nil {
			output = r.Err.Error()
		}
		if err := table.Append([]string{r.Plugin, r.Version, r.State.String(), output}); err != nil {
			return err
		}
	}
	return table.Render()
}
