// Package roots computes the directories from which plugin bundles resolve
// source modules and stage implementations. Every bundle resolves against the
// base directory and the one shared dependency pool beneath it, so plugins
// located anywhere share a single dependency installation.
package roots

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yalue/merged_fs"
)

// Roots holds the module and loader resolution roots. Both lists hold the
// same directories but never share a backing array.
type Roots struct {
	Modules []string `json:"modules"`
	Loaders []string `json:"loaders"`
}

// Resolve returns [baseDir, baseDir/pool] for both modules and loaders.
func Resolve(baseDir, pool string) Roots {
	dirs := []string{baseDir, filepath.Join(baseDir, pool)}
	return Roots{
		Modules: slices.Clone(dirs),
		Loaders: slices.Clone(dirs),
	}
}

func (r Roots) Clone() Roots {
	return Roots{
		Modules: slices.Clone(r.Modules),
		Loaders: slices.Clone(r.Loaders),
	}
}

// ModulesFS layers the module roots into one fs.FS; a file in an earlier
// root shadows the same path in later ones. A nil open uses os.DirFS.
func (r Roots) ModulesFS(open func(dir string) fs.FS) fs.FS {
	return layer(r.Modules, open)
}

// LoadersFS is ModulesFS for the loader roots.
func (r Roots) LoadersFS(open func(dir string) fs.FS) fs.FS {
	return layer(r.Loaders, open)
}

// Within returns an opener for ModulesFS and LoadersFS that serves roots
// inside baseDir from fsys, which is rooted at baseDir. Roots outside it are
// opened with os.DirFS.
func Within(fsys fs.FS, baseDir string) func(dir string) fs.FS {
	return func(dir string) fs.FS {
		rel, err := filepath.Rel(baseDir, dir)
		if err != nil || !filepath.IsLocal(rel) {
			return os.DirFS(dir)
		}
		sub, err := fs.Sub(fsys, filepath.ToSlash(rel))
		if err != nil {
			return os.DirFS(dir)
		}
		return sub
	}
}

func layer(dirs []string, open func(string) fs.FS) fs.FS {
	if open == nil {
		open = os.DirFS
	}
	fses := make([]fs.FS, len(dirs))
	for i, d := range dirs {
		fses[i] = open(d)
	}
	return merged_fs.MergeMultiple(fses...)
}

// NotFoundError is returned by Lookup when no candidate exists.
type NotFoundError struct {
	Request string
}

func (err *NotFoundError) Error() string {
	return fmt.Sprintf("cannot resolve %q", err.Request)
}

// Lookup resolves a module request against fsys: the request itself, then
// the request with each extension appended, then an index file with each
// extension. It returns the slash-separated path found.
func Lookup(fsys fs.FS, request string, extensions ...string) (string, error) {
	name := path.Clean(strings.TrimPrefix(filepath.ToSlash(request), "/"))
	if !fs.ValidPath(name) {
		return "", &NotFoundError{Request: request}
	}

	candidates := []string{name}
	for _, ext := range extensions {
		candidates = append(candidates, name+ext)
	}
	for _, ext := range extensions {
		candidates = append(candidates, path.Join(name, "index"+ext))
	}

	for _, c := range candidates {
		fi, err := fs.Stat(fsys, c)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		if !fi.IsDir() {
			return c, nil
		}
	}
	return "", &NotFoundError{Request: request}
}
