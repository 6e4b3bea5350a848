package stage

import (
	"slices"
	"strings"

	"github.com/learningequality/bundlegen/internal/mode"
)

// Name is the logical identifier of a processing step.
type Name string

const (
	InlineMediaExpansion Name = "inline-media-expansion"
	StructuralValidation Name = "structural-validation"
	ScriptLint           Name = "script-lint"
	ComponentCompile     Name = "component-compile"
	Downlevel            Name = "downlevel"
	StyleExtract         Name = "style-extract"
	StyleLoad            Name = "style-load"
	StylePostProcess     Name = "style-postprocess"
	StylePreprocess      Name = "style-preprocess"
	AssetEmit            Name = "asset-emit"
	ModuleShim           Name = "module-shim"
)

// Stage is one validation or transformation step of a rule. Seq is the
// 1-based position of the stage in its rule.
type Stage struct {
	Name    Name     `json:"name"`
	Loader  string   `json:"loader"`
	Phase   Phase    `json:"phase"`
	Seq     int      `json:"seq"`
	Options Options  `json:"options,omitzero"`
	Unless  *Pattern `json:"unless,omitempty"`
}

// Options enumerates every option a stage implementation understands. Zero
// values are omitted from the descriptor.
type Options struct {
	FailOnError        bool          `json:"failOnError,omitempty"`
	EmitAs             mode.Severity `json:"emitAs,omitempty"`
	EmitError          bool          `json:"emitError,omitempty"`
	EmitWarning        bool          `json:"emitWarning,omitempty"`
	Fix                bool          `json:"fix,omitempty"`
	SourceMap          bool          `json:"sourceMap,omitempty"`
	Minimize           bool          `json:"minimize,omitempty"`
	ConfigFile         string        `json:"configFile,omitempty"`
	RulePaths          []string      `json:"rulePaths,omitempty"`
	InlineLimit        int64         `json:"limit,omitempty"`
	FilenamePattern    string        `json:"name,omitempty"`
	PrependData        string        `json:"data,omitempty"`
	ExportName         string        `json:"exports,omitempty"`
	PreserveWhitespace *bool         `json:"preserveWhitespace,omitempty"`
	ObjectAssign       string        `json:"objectAssign,omitempty"`
}

func (o Options) Clone() Options {
	o.RulePaths = slices.Clone(o.RulePaths)
	if o.PreserveWhitespace != nil {
		v := *o.PreserveWhitespace
		o.PreserveWhitespace = &v
	}
	return o
}

func (s Stage) Clone() Stage {
	s.Options = s.Options.Clone()
	return s
}

// Applies reports whether s runs for the asset at path.
func (s Stage) Applies(path string) bool {
	return !s.Unless.Match(path)
}

// Emission is how an emit stage outputs an asset.
type Emission int

const (
	EmitFile Emission = iota
	EmitInline
)

func (e Emission) String() string {
	if e == EmitInline {
		return "inline"
	}
	return "file"
}

// Emission decides whether an asset of size bytes is inlined. Only assets
// strictly below a positive InlineLimit are inlined.
func (o Options) Emission(size int64) Emission {
	if o.InlineLimit > 0 && size < o.InlineLimit {
		return EmitInline
	}
	return EmitFile
}

// FileName renders FilenamePattern for one emitted asset. ext is given
// without the leading dot.
func (o Options) FileName(name, ext, hash string) string {
	return strings.NewReplacer(
		"[name]", name,
		"[ext]", strings.TrimPrefix(ext, "."),
		"[hash]", hash,
	).Replace(o.FilenamePattern)
}
