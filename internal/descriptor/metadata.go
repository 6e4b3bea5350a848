package descriptor

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Metadata describes one plugin bundle as found by plugin discovery.
type Metadata struct {
	Name      string `json:"name" mapstructure:"name"`
	EntryPath string `json:"entry_path" mapstructure:"entry_path"`
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`
	Version   string `json:"version" mapstructure:"version"`
}

// ConfigurationError reports plugin metadata the build cannot proceed with.
type ConfigurationError struct {
	Plugin string
	Field  string
	Reason string
	Err    error
}

func (err *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("plugin ")
	if err.Plugin == "" {
		b.WriteString("<unnamed>")
	} else {
		b.WriteString(err.Plugin)
	}
	if err.Field != "" {
		fmt.Fprintf(&b, ": %s", err.Field)
	}
	fmt.Fprintf(&b, ": %s", err.Reason)
	if err.Err != nil {
		fmt.Fprintf(&b, ": %v", err.Err)
	}
	return b.String()
}

func (err *ConfigurationError) Unwrap() error {
	return err.Err
}

// DecodeMetadata decodes a raw discovery record. Unknown keys and values of
// the wrong type are configuration errors.
func DecodeMetadata(raw map[string]any) (Metadata, error) {
	var m Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &m,
		TagName:     "mapstructure",
	})
	if err != nil {
		return Metadata{}, err
	}
	if err := dec.Decode(raw); err != nil {
		name, _ := raw["name"].(string)
		return Metadata{}, &ConfigurationError{Plugin: name, Reason: "invalid metadata record", Err: err}
	}
	return m, nil
}

// Validate checks that every field is set.
func (m Metadata) Validate() error {
	for _, f := range []struct {
		field, value string
	}{
		{"name", m.Name},
		{"entry_path", m.EntryPath},
		{"output_dir", m.OutputDir},
		{"version", m.Version},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &ConfigurationError{Plugin: m.Name, Field: f.field, Reason: "must not be empty"}
		}
	}
	return nil
}
