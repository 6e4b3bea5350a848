package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConflictError reports a setting two configuration files disagree on.
// Path is dotted, e.g. plugins.demo.version.
type ConflictError struct {
	Path  string
	First string
	Later string
}

func (err *ConflictError) Error() string {
	return fmt.Sprintf("conflict for config path %s: set differently in %s and %s", err.Path, err.First, err.Later)
}

// Merge combines configuration files into one YAML document, so a shared
// base file can be completed by per-checkout files (plugin versions, extra
// checks). Directories are walked for .yaml and .yml files in lexical order.
//
// Mappings merge key by key, and a bare plugin entry ("demo:") merges with
// the fields another file gives it. Any other value set in two files is a
// *ConflictError when the values differ and conflictError is set; otherwise
// the later file wins.
func Merge(configFiles []string, conflictError bool) ([]byte, error) {
	var paths []string
	for _, f := range configFiles {
		if err := filepath.WalkDir(f, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path != f && !isYAML(path) {
				return nil
			}
			paths = append(paths, path)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	m := merger{origins: map[string]string{}, conflictError: conflictError}
	merged := map[string]any{}
	for _, f := range paths {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %v: %w", f, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(bs, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration file %v: %w", f, err)
		}
		if err := m.merge(merged, doc, nil, f); err != nil {
			return nil, err
		}
	}

	bs, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged configuration: %w", err)
	}

	return bs, nil
}

func isYAML(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// merger remembers which file set each value so conflicts name both files.
type merger struct {
	origins       map[string]string
	conflictError bool
}

func (m *merger) merge(dst, src map[string]any, prefix []string, file string) error {
	for _, key := range slices.Sorted(maps.Keys(src)) { // deterministic conflict errors
		value := src[key]
		path := append(slices.Clone(prefix), key)
		dotted := strings.Join(path, ".")

		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			m.record(path, value, file)
			continue
		}

		existingMap, ok1 := existing.(map[string]any)
		valueMap, ok2 := value.(map[string]any)
		switch {
		case ok1 && ok2:
			if err := m.merge(existingMap, valueMap, path, file); err != nil {
				return err
			}
			continue
		case ok1 && value == nil && isPluginEntry(path):
			continue
		case existing == nil && ok2 && isPluginEntry(path):
			dst[key] = value
			m.record(path, value, file)
			continue
		}

		if m.conflictError && !reflect.DeepEqual(existing, value) {
			return &ConflictError{Path: dotted, First: m.origins[dotted], Later: file}
		}
		dst[key] = value
		m.record(path, value, file)
	}
	return nil
}

func (m *merger) record(path []string, value any, file string) {
	m.origins[strings.Join(path, ".")] = file
	if sub, ok := value.(map[string]any); ok {
		for key, v := range sub {
			m.record(append(slices.Clone(path), key), v, file)
		}
	}
}

func isPluginEntry(path []string) bool {
	return len(path) == 2 && path[0] == "plugins"
}
