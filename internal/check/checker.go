// Package check runs the pre-pass validation stages and the lint plugins of
// one mode over a source tree, outside of any bundling engine. Stages and
// plugins are implemented by registered processors, usually external
// linters wrapped in a Command.
package check

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/logging"
	"github.com/learningequality/bundlegen/internal/plugins"
	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/stage"
	"github.com/learningequality/bundlegen/internal/violation"
)

// UnknownCheckError is returned by Register for a name that is neither a
// pre-pass stage nor a lint plugin of the mode.
type UnknownCheckError struct {
	Name string
}

func (err *UnknownCheckError) Error() string {
	return fmt.Sprintf("unknown check %q: not a pre-pass stage or lint plugin", err.Name)
}

type Checker struct {
	settings  stage.Settings
	rules     []rules.Rule
	lints     []plugins.Plugin
	fsys      fs.FS
	stages    map[stage.Name]violation.Processor
	linters   map[plugins.Name]violation.Processor
	trackers  map[plugins.Name]*plugins.ChangeTracker
	trackSize int
	workers   int
	log       *logging.Logger
}

// New returns a checker for the rules and plugins of base. Without any
// registered processor it checks nothing.
func New(base *descriptor.Base) *Checker {
	tmpl := base.Template()
	c := &Checker{
		settings: base.Settings(),
		stages:   map[stage.Name]violation.Processor{},
		linters:  map[plugins.Name]violation.Processor{},
		trackers: map[plugins.Name]*plugins.ChangeTracker{},
		workers:  1,
		log:      logging.NewNop(),
	}
	for _, r := range tmpl.Module.Rules {
		if r.Enforce == stage.PhasePrePass {
			c.rules = append(c.rules, r)
		}
	}
	for _, p := range tmpl.Plugins {
		if p.Active && (len(p.Options.Files) > 0 || len(p.Options.Extensions) > 0) {
			c.lints = append(c.lints, p)
		}
	}
	return c
}

// WithFS sets the file system rooted at the base directory. Defaults to the
// base directory on disk.
func (c *Checker) WithFS(fsys fs.FS) *Checker {
	c.fsys = fsys
	return c
}

// WithChangeTracking remembers up to size files per lint plugin across Run
// calls, so plugins that lint dirty modules only skip unchanged files.
func (c *Checker) WithChangeTracking(size int) *Checker {
	c.trackSize = size
	return c
}

func (c *Checker) WithWorkers(n int) *Checker {
	c.workers = max(n, 1)
	return c
}

func (c *Checker) WithLogger(log *logging.Logger) *Checker {
	c.log = log
	return c
}

// Register binds p to the pre-pass stage or lint plugin called name.
func (c *Checker) Register(name string, p violation.Processor) error {
	for _, r := range c.rules {
		for _, st := range r.Stages {
			if string(st.Name) == name {
				c.stages[st.Name] = p
				return nil
			}
		}
	}
	for _, l := range c.lints {
		if string(l.Name) == name {
			c.linters[l.Name] = p
			return nil
		}
	}
	return &UnknownCheckError{Name: name}
}

type job struct {
	path    string
	content []byte
	rule    *rules.Rule
	lint    *plugins.Plugin
}

// Run checks every asset of the tree once and returns one report per
// checked (asset, rule) and (asset, lint plugin) pair. Pre-pass stages
// without a processor are passed through. The error joins the processor
// errors of all reports.
func (c *Checker) Run(ctx context.Context) ([]violation.Report, error) {
	fsys := c.fsys
	if fsys == nil {
		fsys = os.DirFS(c.settings.BaseDir)
	}

	files, err := c.collect(fsys)
	if err != nil {
		return nil, err
	}
	jobs, err := c.plan(files)
	if err != nil {
		return nil, err
	}

	procs := c.prePassProcessors()
	reports := make([]violation.Report, len(jobs))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if j.rule != nil {
				reports[i], _ = violation.RunPrePass(ctx, *j.rule, j.path, j.content, procs)
				return nil
			}
			reports[i] = c.lint(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range reports {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Path, r.Err))
		}
	}
	c.log.Debugf("checked %d asset(s) of %d file(s)", len(jobs), len(files))
	return reports, errors.Join(errs...)
}

// collect reads the files some registered check applies to. The dependency
// pool and hidden directories are skipped.
func (c *Checker) collect(fsys fs.FS) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && (d.Name() == c.settings.DependencyPool || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !c.wanted(p) {
			return nil
		}
		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files[p] = bs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", c.settings.BaseDir, err)
	}
	return files, nil
}

func (c *Checker) wanted(p string) bool {
	for i := range c.rules {
		if c.registered(c.rules[i], p) {
			return true
		}
	}
	for _, l := range c.lints {
		if _, ok := c.linters[l.Name]; ok && l.Matches(p) {
			return true
		}
	}
	return false
}

// registered reports whether rule applies to p with at least one of its
// stages backed by a processor.
func (c *Checker) registered(r rules.Rule, p string) bool {
	if !r.Applies(p) {
		return false
	}
	return slices.ContainsFunc(r.StagesFor(p), func(st stage.Stage) bool {
		_, ok := c.stages[st.Name]
		return ok
	})
}

func (c *Checker) plan(files map[string][]byte) ([]job, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var jobs []job
	for _, p := range paths {
		for i := range c.rules {
			if c.registered(c.rules[i], p) {
				jobs = append(jobs, job{path: p, content: files[p], rule: &c.rules[i]})
			}
		}
	}

	for i := range c.lints {
		l := &c.lints[i]
		if _, ok := c.linters[l.Name]; !ok {
			continue
		}
		t, err := c.tracker(l.Name)
		if err != nil {
			return nil, err
		}
		for _, p := range plugins.Select(*l, t, files) {
			jobs = append(jobs, job{path: p, content: files[p], lint: l})
		}
	}
	return jobs, nil
}

func (c *Checker) tracker(name plugins.Name) (*plugins.ChangeTracker, error) {
	if c.trackSize <= 0 {
		return nil, nil
	}
	if t, ok := c.trackers[name]; ok {
		return t, nil
	}
	t, err := plugins.NewChangeTracker(c.trackSize)
	if err != nil {
		return nil, fmt.Errorf("change tracker of %s: %w", name, err)
	}
	c.trackers[name] = t
	return t, nil
}

func (c *Checker) prePassProcessors() map[stage.Name]violation.Processor {
	procs := make(map[stage.Name]violation.Processor, len(c.stages))
	for _, r := range c.rules {
		for _, st := range r.Stages {
			if p, ok := c.stages[st.Name]; ok {
				procs[st.Name] = p
				continue
			}
			if _, ok := procs[st.Name]; !ok {
				c.log.Debugf("stage %s has no check registered; passing assets through", st.Name)
				procs[st.Name] = passThrough
			}
		}
	}
	return procs
}

var passThrough = violation.ProcessorFunc(func(context.Context, stage.Stage, string, []byte) (violation.Result, error) {
	return violation.Result{}, nil
})

func (c *Checker) lint(ctx context.Context, j job) violation.Report {
	st := stage.Stage{Name: stage.Name(j.lint.Name), Phase: stage.PhasePrePass}
	r := violation.Report{Path: j.path, Content: j.content}

	res, err := c.linters[j.lint.Name].Process(ctx, st, j.path, j.content)
	if err != nil {
		r.Err = fmt.Errorf("plugin %s: %w", j.lint.Name, err)
		return r
	}
	for _, v := range res.Violations {
		v.Stage = st.Name
		if v.Path == "" {
			v.Path = j.path
		}
		r.Violations = append(r.Violations, v)
	}
	if t := c.trackers[j.lint.Name]; t != nil {
		t.MarkChecked(j.path, j.content)
	}
	return r
}
