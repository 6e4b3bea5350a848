// Package compiler builds the per-bundle configuration handed to the frontend
// bundling engine for each plugin.
//
// A build runs in one of two modes, resolved once from NODE_ENV: release
// (exactly "production") or development. Every mode-dependent option
// (source maps, lint severity, auto-fix, minification) derives from that one
// flag, so the options can never disagree with each other.
//
// # Basic Usage
//
// Compile the base for the current mode, then instantiate it per plugin:
//
//	import "github.com/learningequality/bundlegen/pkg/compiler"
//
//	flags := compiler.ResolveMode()
//	base, err := compiler.NewBase(flags, compiler.DefaultSettings("/srv/kolibri"), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d, err := compiler.Instantiate(ctx, base, compiler.Metadata{
//	    Name:      "demo",
//	    EntryPath: "src/index.js",
//	    OutputDir: "dist",
//	    Version:   "1.0.0",
//	})
//
// Instantiate deep-copies the base, so descriptors of different plugins may
// be built concurrently from one base and modified independently.
//
// # Rules
//
// The rule list is ordered by asset category: markup, component, script,
// style, preprocessed style, media, font and the optional legacy override.
// Pre-pass rules validate sources before any transformation; within them
// inline media expansion always runs before structural validation, and
// script linting after both. Use Match to list the rules applying to a path:
//
//	for _, r := range compiler.Match(d.Module.Rules, "plugins/demo/App.vue") {
//	    fmt.Println(r.Category, r.Enforce)
//	}
//
// # Validation
//
// Engines that implement the pre-pass stages themselves call RunPrePass per
// asset with a Processor per stage and hand the reports to the Policy of the
// mode, which fails release builds on any violation and logs warnings
// otherwise. A Checker does the same over a whole source tree, with external
// linters wrapped in a Command:
//
//	checker := compiler.NewChecker(base)
//	_ = checker.Register("script-lint", compiler.NewCommand("/srv/kolibri", "npx", "eslint", "--format", "unix"))
//	reports, err := checker.Run(ctx)
//	if err == nil {
//	    err = compiler.NewPolicy(flags).Apply(compiler.NewNopLogger(), reports...)
//	}
//
// # Errors
//
// Instantiate returns a *ConfigurationError when a metadata field is empty
// or the entry file does not exist inside the base directory.
// EnsureLocaleDir returns a *locale.IOError when the directory cannot be
// created.
package compiler
