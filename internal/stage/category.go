package stage

import "fmt"

// Category classifies source files. The set is fixed.
type Category string

const (
	CategoryMarkup            Category = "markup"
	CategoryComponent         Category = "component"
	CategoryScript            Category = "script"
	CategoryStyle             Category = "style"
	CategoryPreprocessedStyle Category = "preprocessed-style"
	CategoryMedia             Category = "media"
	CategoryFont              Category = "font"
	CategorySpecialOverride   Category = "special-override"
)

// Categories lists every category in rule priority order.
var Categories = []Category{
	CategoryMarkup,
	CategoryComponent,
	CategoryScript,
	CategoryStyle,
	CategoryPreprocessedStyle,
	CategoryMedia,
	CategoryFont,
	CategorySpecialOverride,
}

func (c Category) String() string {
	return string(c)
}

// Phase is the enforcement phase of a stage or rule.
type Phase int

const (
	PhasePrePass Phase = iota
	PhaseTransform
	PhaseEmit
)

var phaseNames = [...]string{
	PhasePrePass:   "pre",
	PhaseTransform: "transform",
	PhaseEmit:      "emit",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

func (p *Phase) UnmarshalText(bs []byte) error {
	for i, n := range phaseNames {
		if n == string(bs) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", bs)
}
