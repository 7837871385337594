package dynlib

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// Default NEEDED-entry reader backed by debug/elf.
type elfReader struct{}

// Returns the shared-library names declared by the ELF file at path, in
// declaration order.
//
// Non-ELF or corrupt input fails with [ErrMetadataRead].
func (elfReader) Needed(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrMetadataRead, "%s: %v", path, err)
	}
	defer f.Close()

	libs, err := f.ImportedLibraries()
	if err != nil {
		return nil, errors.Wrapf(ErrMetadataRead, "%s: %v", path, err)
	}

	return libs, nil
}
