package dynlib

import "errors"

var (
	ErrLibraryNotFound = errors.New("library not found")
	ErrMetadataRead    = errors.New("failed to read dynamic section")
)
