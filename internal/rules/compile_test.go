package rules_test

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/learningequality/bundlegen/internal/mode"
	"github.com/learningequality/bundlegen/internal/rules"
	"github.com/learningequality/bundlegen/internal/stage"
)

type ruleKey struct {
	Category stage.Category
	Enforce  stage.Phase
}

func keys(rs []rules.Rule) []ruleKey {
	ks := make([]ruleKey, len(rs))
	for i, r := range rs {
		ks[i] = ruleKey{r.Category, r.Enforce}
	}
	return ks
}

func mustCompile(t *testing.T, flags mode.Flags, fsys fstest.MapFS) []rules.Rule {
	t.Helper()
	rs, err := rules.Compile(flags, stage.DefaultSettings("/base"), fsys)
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

func find(rs []rules.Rule, c stage.Category, p stage.Phase) rules.Rule {
	for _, r := range rs {
		if r.Category == c && r.Enforce == p {
			return r
		}
	}
	return rules.Rule{}
}

func TestCompileOrder(t *testing.T) {
	exp := []ruleKey{
		{stage.CategoryMarkup, stage.PhasePrePass},
		{stage.CategoryComponent, stage.PhasePrePass},
		{stage.CategoryScript, stage.PhasePrePass},
		{stage.CategoryComponent, stage.PhaseTransform},
		{stage.CategoryScript, stage.PhaseTransform},
		{stage.CategoryStyle, stage.PhaseTransform},
		{stage.CategoryPreprocessedStyle, stage.PhaseTransform},
		{stage.CategoryMedia, stage.PhaseEmit},
		{stage.CategoryFont, stage.PhaseEmit},
	}

	t.Run("without override module", func(t *testing.T) {
		if diff := cmp.Diff(exp, keys(mustCompile(t, mode.New(false), fstest.MapFS{}))); diff != "" {
			t.Fatalf("unexpected rule order (-want +got):\n%s", diff)
		}
	})

	t.Run("with override module under the base directory", func(t *testing.T) {
		fsys := fstest.MapFS{"fg-loadcss/src/onloadCSS.js": {Data: []byte("")}}
		withOverride := append(slices.Clone(exp), ruleKey{stage.CategorySpecialOverride, stage.PhaseTransform})
		if diff := cmp.Diff(withOverride, keys(mustCompile(t, mode.New(false), fsys))); diff != "" {
			t.Fatalf("unexpected rule order (-want +got):\n%s", diff)
		}
	})

	t.Run("with override module", func(t *testing.T) {
		fsys := fstest.MapFS{"node_modules/fg-loadcss/src/onloadCSS.js": {Data: []byte("")}}
		rs := mustCompile(t, mode.New(false), fsys)
		withOverride := append(exp, ruleKey{stage.CategorySpecialOverride, stage.PhaseTransform})
		if diff := cmp.Diff(withOverride, keys(rs)); diff != "" {
			t.Fatalf("unexpected rule order (-want +got):\n%s", diff)
		}
		shim := rs[len(rs)-1]
		if !shim.Applies("/base/node_modules/fg-loadcss/src/onloadCSS.js") {
			t.Fatal("expected override rule to apply to the shim module")
		}
		if exp, act := "onloadCSS", shim.Stages[0].Options.ExportName; exp != act {
			t.Fatalf("expected export %q, got %q", exp, act)
		}
	})
}

func TestCompileDeterministic(t *testing.T) {
	for _, release := range []bool{false, true} {
		a, err := json.Marshal(mustCompile(t, mode.New(release), fstest.MapFS{}))
		if err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(mustCompile(t, mode.New(release), fstest.MapFS{}))
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Fatalf("release=%v: expected identical rule descriptions:\n%s\n%s", release, a, b)
		}
	}

	dev, _ := json.Marshal(mustCompile(t, mode.New(false), fstest.MapFS{}))
	rel, _ := json.Marshal(mustCompile(t, mode.New(true), fstest.MapFS{}))
	if string(dev) == string(rel) {
		t.Fatal("expected modes to produce different rules")
	}
}

func TestExpansionPrecedesValidation(t *testing.T) {
	for _, release := range []bool{false, true} {
		rs := mustCompile(t, mode.New(release), fstest.MapFS{})
		for _, c := range []stage.Category{stage.CategoryMarkup, stage.CategoryComponent} {
			r := find(rs, c, stage.PhasePrePass)
			if exp, act := stage.InlineMediaExpansion, r.Stages[0].Name; exp != act {
				t.Fatalf("%s: expected first stage %s, got %s", c, exp, act)
			}
			if exp, act := stage.StructuralValidation, r.Stages[1].Name; exp != act {
				t.Fatalf("%s: expected second stage %s, got %s", c, exp, act)
			}
		}
		component := find(rs, stage.CategoryComponent, stage.PhasePrePass)
		if exp, act := stage.ScriptLint, component.Stages[2].Name; exp != act {
			t.Fatalf("expected component lint last, got %s", act)
		}
	}
}

func TestPredicates(t *testing.T) {
	rs := mustCompile(t, mode.New(false), fstest.MapFS{})

	cases := []struct {
		note     string
		category stage.Category
		phase    stage.Phase
		path     string
		exp      bool
	}{
		{"markup", stage.CategoryMarkup, stage.PhasePrePass, "kolibri/core/assets/src/index.html", true},
		{"vendored markup", stage.CategoryMarkup, stage.PhasePrePass, "node_modules/foo/index.html", false},
		{"component", stage.CategoryComponent, stage.PhasePrePass, "src/views/App.vue", true},
		{"vendored component", stage.CategoryComponent, stage.PhasePrePass, "/base/node_modules/keen-ui/src/UiButton.vue", false},
		{"script lint", stage.CategoryScript, stage.PhasePrePass, "src/app.js", true},
		{"script lint of component block", stage.CategoryScript, stage.PhasePrePass, "src/App.vue.js", false},
		{"vendored script lint", stage.CategoryScript, stage.PhasePrePass, "node_modules/keen-ui/src/index.js", false},
		{"component compile", stage.CategoryComponent, stage.PhaseTransform, "node_modules/keen-ui/src/UiButton.vue", true},
		{"downlevel", stage.CategoryScript, stage.PhaseTransform, "src/app.js", true},
		{"downlevel vendored", stage.CategoryScript, stage.PhaseTransform, "node_modules/lodash/index.js", false},
		{"downlevel allow-listed", stage.CategoryScript, stage.PhaseTransform, "node_modules/keen-ui/src/index.js", true},
		{"downlevel allow-listed absolute", stage.CategoryScript, stage.PhaseTransform, "/base/node_modules/keen-ui/src/index.js", true},
		{"downlevel nested in allow-listed", stage.CategoryScript, stage.PhaseTransform, "node_modules/keen-ui/node_modules/lodash/index.js", false},
		{"downlevel prefix of allow-listed", stage.CategoryScript, stage.PhaseTransform, "node_modules/keen-ui-extra/index.js", false},
		{"css", stage.CategoryStyle, stage.PhaseTransform, "src/main.css", true},
		{"scss", stage.CategoryPreprocessedStyle, stage.PhaseTransform, "src/main.scss", true},
		{"sass", stage.CategoryPreprocessedStyle, stage.PhaseTransform, "src/main.sass", true},
		{"not css", stage.CategoryPreprocessedStyle, stage.PhaseTransform, "src/main.css", false},
		{"png", stage.CategoryMedia, stage.PhaseEmit, "img/logo.png", true},
		{"jpeg", stage.CategoryMedia, stage.PhaseEmit, "img/logo.jpeg", true},
		{"svg", stage.CategoryMedia, stage.PhaseEmit, "img/logo.svg", true},
		{"woff2", stage.CategoryFont, stage.PhaseEmit, "fonts/noto.woff2", true},
		{"not a font", stage.CategoryFont, stage.PhaseEmit, "fonts/noto.otf", false},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			r := find(rs, tc.category, tc.phase)
			if act := r.Applies(tc.path); act != tc.exp {
				t.Fatalf("expected Applies(%q)=%v for %s/%s", tc.path, tc.exp, tc.category, tc.phase)
			}
		})
	}
}

func TestComponentLintSkipsGenerated(t *testing.T) {
	rs := mustCompile(t, mode.New(false), fstest.MapFS{})
	component := find(rs, stage.CategoryComponent, stage.PhasePrePass)

	names := func(ss []stage.Stage) []stage.Name {
		var ns []stage.Name
		for _, s := range ss {
			ns = append(ns, s.Name)
		}
		return ns
	}

	exp := []stage.Name{stage.InlineMediaExpansion, stage.StructuralValidation, stage.ScriptLint}
	if diff := cmp.Diff(exp, names(component.StagesFor("src/views/App.vue"))); diff != "" {
		t.Fatalf("unexpected stages (-want +got):\n%s", diff)
	}

	exp = []stage.Name{stage.InlineMediaExpansion, stage.StructuralValidation}
	if diff := cmp.Diff(exp, names(component.StagesFor("src/generated/Icons.vue"))); diff != "" {
		t.Fatalf("unexpected stages for generated component (-want +got):\n%s", diff)
	}

	if ss := component.StagesFor("src/app.js"); ss != nil {
		t.Fatalf("expected no stages for a non-matching asset, got %v", ss)
	}
}

func TestMatch(t *testing.T) {
	rs := mustCompile(t, mode.New(true), fstest.MapFS{})
	exp := []ruleKey{
		{stage.CategoryComponent, stage.PhasePrePass},
		{stage.CategoryComponent, stage.PhaseTransform},
	}
	if diff := cmp.Diff(exp, keys(rules.Match(rs, "src/App.vue"))); diff != "" {
		t.Fatalf("unexpected matches (-want +got):\n%s", diff)
	}
}

func TestMediaThreshold(t *testing.T) {
	rs := mustCompile(t, mode.New(false), fstest.MapFS{})
	media := find(rs, stage.CategoryMedia, stage.PhaseEmit).Stages[0].Options
	if act := media.Emission(stage.DefaultInlineLimit); act != stage.EmitFile {
		t.Fatalf("expected asset at threshold to be emitted as a file, got %v", act)
	}
	if act := media.Emission(stage.DefaultInlineLimit - 1); act != stage.EmitInline {
		t.Fatalf("expected asset below threshold to be inlined, got %v", act)
	}
	font := find(rs, stage.CategoryFont, stage.PhaseEmit).Stages[0].Options
	if act := font.Emission(1); act != stage.EmitFile {
		t.Fatalf("expected fonts to be emitted as files, got %v", act)
	}
}

func TestScopedAllowList(t *testing.T) {
	s := stage.DefaultSettings("/base")
	s.TranspileAllow = []string{"keen-ui", "@kolibri/design-system"}
	rs, err := rules.Compile(mode.New(false), s, fstest.MapFS{})
	if err != nil {
		t.Fatal(err)
	}
	downlevel := find(rs, stage.CategoryScript, stage.PhaseTransform)

	cases := []struct {
		path string
		exp  bool
	}{
		{"/base/node_modules/@kolibri/design-system/lib/index.js", true},
		{"/base/node_modules/keen-ui/src/index.js", true},
		{"/base/node_modules/@kolibri/other/index.js", false},
		{"/base/node_modules/@kolibri/index.js", false},
		{"/base/node_modules/@kolibri/design-system/node_modules/lodash/index.js", false},
	}
	for _, tc := range cases {
		if act := downlevel.Applies(tc.path); act != tc.exp {
			t.Errorf("expected Applies(%q)=%v", tc.path, tc.exp)
		}
	}
}

func TestCompileInvalidSettings(t *testing.T) {
	cases := []struct {
		note   string
		modify func(*stage.Settings)
	}{
		{"nested allow-list entry", func(s *stage.Settings) { s.TranspileAllow = []string{"keen-ui/src"} }},
		{"empty allow-list entry", func(s *stage.Settings) { s.TranspileAllow = []string{""} }},
		{"duplicate allow-list entry", func(s *stage.Settings) { s.TranspileAllow = []string{"keen-ui", "keen-ui"} }},
		{"pool allow-listed", func(s *stage.Settings) { s.TranspileAllow = []string{"node_modules"} }},
		{"scope without package", func(s *stage.Settings) { s.TranspileAllow = []string{"@kolibri"} }},
		{"empty scope", func(s *stage.Settings) { s.TranspileAllow = []string{"@/design-system"} }},
		{"scoped package with subpath", func(s *stage.Settings) { s.TranspileAllow = []string{"@kolibri/design-system/lib"} }},
		{"bad generated pattern", func(s *stage.Settings) { s.GeneratedPattern = "(" }},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			s := stage.DefaultSettings("/base")
			tc.modify(&s)
			if _, err := rules.Compile(mode.New(false), s, fstest.MapFS{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPredicateValidate(t *testing.T) {
	p := rules.Predicate{
		Test:    stage.MustCompilePattern(`\.js$`),
		Exclude: stage.MustCompilePattern(`\.min\.js$`),
		Pool:    "node_modules",
		Allow:   []string{"keen-ui"},
	}
	var perr *rules.PredicateError
	if err := p.Validate(stage.CategoryScript); !errors.As(err, &perr) {
		t.Fatalf("expected predicate error for an allow-list outside the exclusion, got %v", err)
	}

	p.Exclude = nil
	if err := p.Validate(stage.CategoryScript); !errors.As(err, &perr) {
		t.Fatalf("expected predicate error for an allow-list without exclusion, got %v", err)
	}

	if err := (rules.Predicate{}).Validate(stage.CategoryScript); !errors.As(err, &perr) {
		t.Fatalf("expected predicate error for missing test, got %v", err)
	}
}

func TestCheckOrder(t *testing.T) {
	reg := stage.NewRegistry(mode.New(false), stage.DefaultSettings("/base"))

	swapped := reg.Chain(stage.CategoryMarkup, stage.PhasePrePass)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	swapped[0].Seq, swapped[1].Seq = 1, 2

	badSeq := reg.Chain(stage.CategoryComponent, stage.PhasePrePass)
	badSeq[2].Seq = 7

	lintFirst := reg.Chain(stage.CategoryComponent, stage.PhasePrePass)
	lintFirst[0], lintFirst[2] = lintFirst[2], lintFirst[0]
	lintFirst[0].Seq, lintFirst[2].Seq = 1, 3

	mixed := reg.Chain(stage.CategoryStyle, stage.PhaseTransform)

	cases := []struct {
		note string
		rule rules.Rule
	}{
		{"validation before expansion", rules.Rule{Category: stage.CategoryMarkup, Enforce: stage.PhasePrePass, Stages: swapped}},
		{"sequence gap", rules.Rule{Category: stage.CategoryComponent, Enforce: stage.PhasePrePass, Stages: badSeq}},
		{"lint before validation", rules.Rule{Category: stage.CategoryComponent, Enforce: stage.PhasePrePass, Stages: lintFirst}},
		{"transform stages in pre-pass rule", rules.Rule{Category: stage.CategoryStyle, Enforce: stage.PhasePrePass, Stages: mixed}},
		{"no stages", rules.Rule{Category: stage.CategoryFont, Enforce: stage.PhaseEmit}},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			var oerr *rules.OrderError
			if err := rules.CheckOrder([]rules.Rule{tc.rule}); !errors.As(err, &oerr) {
				t.Fatalf("expected order error, got %v", err)
			}
		})
	}
}

func TestCloneAll(t *testing.T) {
	rs := mustCompile(t, mode.New(false), fstest.MapFS{})
	cp := rules.CloneAll(rs)

	cp[2].Stages[0].Options.RulePaths[0] = "mutated"
	cp[4].Predicate.Allow[0] = "mutated"

	if rs[2].Stages[0].Options.RulePaths[0] == "mutated" {
		t.Fatal("expected clone not to share rule paths")
	}
	if rs[4].Predicate.Allow[0] == "mutated" {
		t.Fatal("expected clone not to share the allow-list")
	}
}
