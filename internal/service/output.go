package service

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatIDs lists the command-line spellings of each format.
var FormatIDs = map[Format][]string{
	FormatJSON: {"json"},
	FormatYAML: {"yaml", "yml"},
}

func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Encode renders v in the given format. YAML is produced from the JSON form
// so both formats carry the same field names.
func Encode(v any, format Format) ([]byte, error) {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	if format != FormatYAML {
		return append(bs, '\n'), nil
	}
	out, err := yaml.JSONToYAML(bs)
	if err != nil {
		return nil, fmt.Errorf("failed to convert descriptor to yaml: %w", err)
	}
	return out, nil
}

// LoadRecords reads a discovery file: a JSON array of raw plugin metadata
// objects.
func LoadRecords(fsys afero.Fs, path string) ([]map[string]any, error) {
	bs, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins file %s: %w", path, err)
	}
	var records []map[string]any
	if err := json.Unmarshal(bs, &records); err != nil {
		return nil, fmt.Errorf("failed to decode plugins file %s: %w", path, err)
	}
	return records, nil
}
