package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Interpreter implementations recognized in image trees.
type Impl string

const CPython Impl = "cpython"

// Interpreter version.
//
// The patch component may be numeric ("4") or an opaque pre-release label
// ("0a7"); it is stored verbatim so both forms compare and display
// losslessly.
type Version struct {
	Major int
	Minor int
	Patch string
}

// Parses a version of the form "major.minor.patch".
//
// The major and minor components must be numeric; the patch component is
// kept as-is.
func ParseVersion(s string) (Version, error) {
	major, rest, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, errors.Wrap(ErrInvalidVersion, s)
	}
	minor, patch, ok := strings.Cut(rest, ".")
	if !ok {
		return Version{}, errors.Wrap(ErrInvalidVersion, s)
	}

	maj, err := strconv.Atoi(major)
	if err != nil {
		return Version{}, errors.Wrap(ErrInvalidVersion, s)
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return Version{}, errors.Wrap(ErrInvalidVersion, s)
	}

	return Version{Major: maj, Minor: min, Patch: patch}, nil
}

// Returns the full "major.minor.patch" form.
func (v Version) Long() string {
	return fmt.Sprintf("%d.%d.%s", v.Major, v.Minor, v.Patch)
}

// Returns the "major.minor" form used in interpreter and library names.
func (v Version) Short() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
