package patchelf

import "errors"

var (
	ErrNotFound = errors.New("patchelf executable not found")
	ErrPatch    = errors.New("patch operation failed")
)
