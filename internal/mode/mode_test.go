package mode_test

import (
	"encoding/json"
	"testing"

	"github.com/learningequality/bundlegen/internal/mode"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		note    string
		env     map[string]string
		release bool
	}{
		{note: "unset", env: map[string]string{}, release: false},
		{note: "production", env: map[string]string{"NODE_ENV": "production"}, release: true},
		{note: "development", env: map[string]string{"NODE_ENV": "development"}, release: false},
		{note: "case sensitive", env: map[string]string{"NODE_ENV": "Production"}, release: false},
		{note: "empty", env: map[string]string{"NODE_ENV": ""}, release: false},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			f := mode.Resolve(func(k string) string { return tc.env[k] })
			if exp, act := tc.release, f.Release(); exp != act {
				t.Fatalf("expected release=%v, got %v", exp, act)
			}
		})
	}
}

func TestFromEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	if !mode.FromEnvironment().Release() {
		t.Fatal("expected release mode")
	}
	t.Setenv("NODE_ENV", "test")
	if mode.Resolve(nil).Release() {
		t.Fatal("expected development mode")
	}
}

func TestDerivedFlags(t *testing.T) {
	release := mode.New(true)
	if release.GenerateSourceMaps() || !release.FailBuildOnViolation() || release.AutoFixOnSave() {
		t.Fatalf("unexpected derived flags for release: %+v", release)
	}
	if release.Severity() != mode.SeverityError || !release.Minify() || release.EmitWarnings() {
		t.Fatal("unexpected release severity/minify/warnings")
	}

	dev := mode.New(false)
	if !dev.GenerateSourceMaps() || dev.FailBuildOnViolation() || !dev.AutoFixOnSave() {
		t.Fatalf("unexpected derived flags for development: %+v", dev)
	}
	if dev.Severity() != mode.SeverityWarning || dev.Minify() || !dev.EmitWarnings() {
		t.Fatal("unexpected development severity/minify/warnings")
	}
}

func TestFlagsJSON(t *testing.T) {
	bs, err := json.Marshal(mode.New(false))
	if err != nil {
		t.Fatal(err)
	}
	exp := `{"release":false,"generateSourceMaps":true,"failBuildOnViolation":false,"autoFixOnSave":true}`
	if string(bs) != exp {
		t.Fatalf("expected %s, got %s", exp, bs)
	}

	// derived fields in the input are ignored
	var f mode.Flags
	if err := json.Unmarshal([]byte(`{"release":true,"generateSourceMaps":true}`), &f); err != nil {
		t.Fatal(err)
	}
	if !f.Release() || f.GenerateSourceMaps() {
		t.Fatalf("expected release flags, got %v", f)
	}
}
