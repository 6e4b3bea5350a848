package compiler_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/learningequality/bundlegen/pkg/compiler"
)

func TestCompiler(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	flags := compiler.ResolveMode()
	if !flags.Release() {
		t.Fatal("expected release mode")
	}

	fsys := fstest.MapFS{"src/index.js": {Data: []byte("export default {};\n")}}
	base, err := compiler.NewBase(flags, compiler.DefaultSettings("/srv/kolibri"), fsys)
	if err != nil {
		t.Fatal(err)
	}

	d, err := compiler.Instantiate(context.Background(), base, compiler.Metadata{Name: "demo", EntryPath: "src/index.js", OutputDir: "dist", Version: "1.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	if exp, act := 2, len(compiler.Match(d.Module.Rules, "plugins/demo/App.vue")); exp != act {
		t.Fatalf("expected %d rules for a component, got %d", exp, act)
	}

	if _, err := compiler.Instantiate(context.Background(), base, compiler.Metadata{Name: "demo"}); err == nil {
		t.Fatal("expected configuration error")
	}

	dir := filepath.Join(t.TempDir(), "kolibri", "locale")
	if err := compiler.EnsureLocaleDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := compiler.EnsureLocaleDir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestPrePassPolicy(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	flags := compiler.ResolveMode()

	fsys := fstest.MapFS{
		"src/index.js": {Data: []byte("export default {};\n")},
		"src/App.vue":  {Data: []byte("<template><div/></template>\n")},
	}
	base, err := compiler.NewBase(flags, compiler.DefaultSettings("/srv/kolibri"), fsys)
	if err != nil {
		t.Fatal(err)
	}

	lint := compiler.ProcessorFunc(func(context.Context, compiler.Stage, string, []byte) (compiler.Result, error) {
		return compiler.Result{Violations: []compiler.Violation{{Line: 2, Column: 1, Message: "unexpected tab"}}}, nil
	})
	pass := compiler.ProcessorFunc(func(context.Context, compiler.Stage, string, []byte) (compiler.Result, error) {
		return compiler.Result{}, nil
	})

	var reports []compiler.Report
	for _, r := range compiler.Match(base.Template().Module.Rules, "src/App.vue") {
		if r.Enforce != compiler.PhasePrePass {
			continue
		}
		procs := map[compiler.StageName]compiler.Processor{}
		for _, st := range r.Stages {
			procs[st.Name] = pass
		}
		procs["structural-validation"] = lint
		report, err := compiler.RunPrePass(context.Background(), r, "src/App.vue", fsys["src/App.vue"].Data, procs)
		if err != nil {
			t.Fatal(err)
		}
		reports = append(reports, report)
	}
	if exp, act := 1, len(reports); exp != act {
		t.Fatalf("expected %d pre-pass report, got %d", exp, act)
	}

	err = compiler.NewPolicy(flags).Apply(compiler.NewNopLogger(), reports...)
	var failed *compiler.FailedError
	if !errors.As(err, &failed) || len(failed.Violations) != 1 {
		t.Fatalf("expected release policy to fail with one violation, got %v", err)
	}

	checker := compiler.NewChecker(base).WithFS(fsys)
	if err := checker.Register("structural-validation", lint); err != nil {
		t.Fatal(err)
	}
	reports, err = checker.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if exp, act := 1, len(reports); exp != act {
		t.Fatalf("expected %d checked asset, got %d", exp, act)
	}
}
