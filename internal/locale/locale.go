// Package locale provisions the shared output directory that must exist
// before any descriptor is handed to the bundling engine.
package locale

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/spf13/afero"
)

// IOError reports a failure to provision a directory. It is fatal for the
// whole run.
type IOError struct {
	Path string
	Err  error
}

func (err *IOError) Error() string {
	return fmt.Sprintf("provision directory %s: %v", err.Path, err.Err)
}

func (err *IOError) Unwrap() error {
	return err.Err
}

type Provisioner struct {
	fs afero.Fs
}

// New returns a provisioner backed by fsys, or by the OS file system if fsys
// is nil.
func New(fsys afero.Fs) *Provisioner {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Provisioner{fs: fsys}
}

// Ensure creates path and its parents unless it already is a directory. An
// existing directory is left untouched.
func (p *Provisioner) Ensure(path string) error {
	fi, err := p.fs.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		return nil
	case err == nil:
		return &IOError{Path: path, Err: syscall.ENOTDIR}
	case !errors.Is(err, fs.ErrNotExist):
		return &IOError{Path: path, Err: err}
	}

	if err := p.fs.MkdirAll(path, 0o755); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}
