package check_test

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/learningequality/bundlegen/internal/check"
	"github.com/learningequality/bundlegen/internal/descriptor"
	"github.com/learningequality/bundlegen/internal/logging"
	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/stage"
	"github.com/learningequality/bundlegen/internal/violation"
)

type call struct {
	Stage stage.Name
	Path  string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	flag  string
}

func (r *recorder) Process(_ context.Context, st stage.Stage, path string, _ []byte) (violation.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{st.Name, path})
	if path == r.flag {
		return violation.Result{Violations: []violation.Violation{{Line: 1, Column: 1, Message: "flagged"}}}, nil
	}
	return violation.Result{}, nil
}

func (r *recorder) sorted() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.calls)
	slices.SortFunc(out, func(a, b call) int {
		return strings.Compare(string(a.Stage)+" "+a.Path, string(b.Stage)+" "+b.Path)
	})
	r.calls = nil
	return out
}

func tree() fstest.MapFS {
	return fstest.MapFS{
		"src/app.js":                   {Data: []byte("console.log(1);\n")},
		"src/App.vue":                  {Data: []byte("<template><div/></template>\n")},
		"styles/main.scss":             {Data: []byte("a { color: red; }\n")},
		"node_modules/lodash/index.js": {Data: []byte("module.exports = {};\n")},
		".git/hooks/pre-commit.js":     {Data: []byte("\n")},
	}
}

func newChecker(t *testing.T, flags mode.Flags, fsys fstest.MapFS) *check.Checker {
	t.Helper()
	b, err := descriptor.NewBase(flags, stage.DefaultSettings("/srv/kolibri"), fsys)
	if err != nil {
		t.Fatal(err)
	}
	return check.New(b).WithFS(fsys)
}

func TestCheckerRun(t *testing.T) {
	fsys := tree()
	c := newChecker(t, mode.New(false), fsys).WithWorkers(2).WithChangeTracking(16)

	lint := &recorder{flag: "src/app.js"}
	style := &recorder{}
	if err := c.Register(string(stage.ScriptLint), lint); err != nil {
		t.Fatal(err)
	}
	if err := c.Register("stylelint", style); err != nil {
		t.Fatal(err)
	}

	reports, err := c.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	exp := []call{
		{stage.ScriptLint, "src/App.vue"},
		{stage.ScriptLint, "src/app.js"},
	}
	if diff := cmp.Diff(exp, lint.sorted()); diff != "" {
		t.Fatalf("unexpected script lint calls (-want, +got):\n%s", diff)
	}
	exp = []call{
		{"stylelint", "src/App.vue"},
		{"stylelint", "styles/main.scss"},
	}
	if diff := cmp.Diff(exp, style.sorted()); diff != "" {
		t.Fatalf("unexpected style lint calls (-want, +got):\n%s", diff)
	}

	var vs []violation.Violation
	for _, r := range reports {
		vs = append(vs, r.Violations...)
	}
	expViolations := []violation.Violation{{Stage: stage.ScriptLint, Path: "src/app.js", Line: 1, Column: 1, Message: "flagged"}}
	if diff := cmp.Diff(expViolations, vs); diff != "" {
		t.Fatalf("unexpected violations (-want, +got):\n%s", diff)
	}

	t.Run("dirty files only", func(t *testing.T) {
		fsys["styles/main.scss"] = &fstest.MapFile{Data: []byte("a { color: blue; }\n")}
		if _, err := c.Run(t.Context()); err != nil {
			t.Fatal(err)
		}
		if exp, act := 2, len(lint.sorted()); exp != act {
			t.Fatalf("expected script lint to revisit %d files, got %d", exp, act)
		}
		exp := []call{{"stylelint", "styles/main.scss"}}
		if diff := cmp.Diff(exp, style.sorted()); diff != "" {
			t.Fatalf("unexpected style lint calls (-want, +got):\n%s", diff)
		}
	})
}

func TestCheckerPolicy(t *testing.T) {
	for _, release := range []bool{false, true} {
		flags := mode.New(release)
		c := newChecker(t, flags, tree())
		if err := c.Register(string(stage.ScriptLint), &recorder{flag: "src/app.js"}); err != nil {
			t.Fatal(err)
		}
		reports, err := c.Run(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		err = violation.NewPolicy(flags).Apply(logging.NewNop(), reports...)
		var failed *violation.FailedError
		if act := errors.As(err, &failed); act != release {
			t.Fatalf("release=%v: expected failure=%v, got %v", release, release, err)
		}
	}
}

func TestCheckerWithoutChecks(t *testing.T) {
	reports, err := newChecker(t, mode.New(false), tree()).Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %d", len(reports))
	}
}

func TestCheckerProcessorError(t *testing.T) {
	c := newChecker(t, mode.New(false), tree())
	boom := errors.New("linter crashed")
	err := c.Register(string(stage.StructuralValidation), violation.ProcessorFunc(func(context.Context, stage.Stage, string, []byte) (violation.Result, error) {
		return violation.Result{}, boom
	}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Run(t.Context()); !errors.Is(err, boom) {
		t.Fatalf("expected processor error, got %v", err)
	}
}

func TestRegisterUnknown(t *testing.T) {
	c := newChecker(t, mode.New(false), tree())
	for _, name := range []string{"eslint", string(stage.Downlevel), "uglifyjs"} {
		var unknown *check.UnknownCheckError
		if err := c.Register(name, &recorder{}); !errors.As(err, &unknown) {
			t.Fatalf("%s: expected unknown check error, got %v", name, err)
		}
	}
}

func TestCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		note   string
		script string
		exp    []violation.Violation
	}{
		{
			note:   "clean",
			script: "exit 0",
		},
		{
			note:   "unix format",
			script: `echo "$0:3:5: Unexpected console statement [Error/no-console]"; echo "$0:7:1: Missing semicolon"; exit 1`,
			exp: []violation.Violation{
				{Path: "src/app.js", Line: 3, Column: 5, Message: "Unexpected console statement", Rule: "no-console"},
				{Path: "src/app.js", Line: 7, Column: 1, Message: "Missing semicolon"},
			},
		},
		{
			note:   "unstructured output",
			script: `echo "formatting differs" >&2; exit 2`,
			exp:    []violation.Violation{{Path: "src/app.js", Message: "formatting differs"}},
		},
		{
			note:   "silent failure",
			script: "exit 3",
			exp:    []violation.Violation{{Path: "src/app.js", Message: "exited with status 3"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			cmd := check.NewCommand(t.TempDir(), "sh", "-c", tc.script)
			res, err := cmd.Process(t.Context(), stage.Stage{Name: stage.ScriptLint}, "src/app.js", nil)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, res.Violations); diff != "" {
				t.Fatalf("unexpected violations (-want, +got):\n%s", diff)
			}
		})
	}

	t.Run("missing executable", func(t *testing.T) {
		cmd := check.NewCommand(t.TempDir(), "bundlegen-no-such-linter")
		if _, err := cmd.Process(t.Context(), stage.Stage{Name: stage.ScriptLint}, "src/app.js", nil); err == nil {
			t.Fatal("expected error")
		}
	})
}
