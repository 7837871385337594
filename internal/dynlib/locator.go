package dynlib

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Resolves bare library names against an ordered list of directories.
//
// Order encodes priority: the architecture-specific library directory is
// probed before generic locations. There is no merging; the first existing
// match is returned.
type Locator struct {
	searchPath []string // Directories probed in order.
}

// Creates a locator over the given search directories.
func NewLocator(searchPath []string) *Locator {
	return &Locator{searchPath: searchPath}
}

// Returns the path of the first directory entry matching name.
//
// Fails with [ErrLibraryNotFound] when no search directory contains the
// library. Callers are expected to filter excluded names before calling.
func (l *Locator) Locate(name string) (string, error) {
	for _, dir := range l.searchPath {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrap(ErrLibraryNotFound, name)
}
