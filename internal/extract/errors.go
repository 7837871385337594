package extract

import "errors"

var (
	ErrUnsupportedLayout  = errors.New("unsupported image layout")
	ErrDestinationExists  = errors.New("destination already exists")
	ErrInvalidVersion     = errors.New("invalid version string")
	ErrUnsupportedArch    = errors.New("unsupported architecture")
	ErrInvalidExcludeList = errors.New("invalid exclude list")
)
