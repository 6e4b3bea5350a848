package stage

import (
	"encoding/json"
	"regexp"
)

// Pattern is a compiled path regular expression that serializes as its
// source. A compiled regexp is safe for concurrent use, so copies of a
// Pattern may share it.
type Pattern struct {
	re *regexp.Regexp
}

func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Pattern{re: re}, nil
}

func MustCompilePattern(expr string) *Pattern {
	return &Pattern{re: regexp.MustCompile(expr)}
}

// Match reports whether p matches path. A nil pattern matches nothing.
func (p *Pattern) Match(path string) bool {
	if p == nil {
		return false
	}
	return p.re.MatchString(path)
}

func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.re.String()
}

func (p *Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pattern) UnmarshalText(bs []byte) error {
	re, err := regexp.Compile(string(bs))
	if err != nil {
		return err
	}
	p.re = re
	return nil
}

func (p *Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}
