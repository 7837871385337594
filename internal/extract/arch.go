package extract

import "github.com/pkg/errors"

// Target architecture of a manylinux image.
type Arch string

const (
	Aarch64 Arch = "aarch64"
	I686    Arch = "i686"
	X8664   Arch = "x86_64"
)

// Returns the architecture-specific library directory relative to the
// image root. 64-bit architectures keep their system libraries under
// lib64; i686 uses lib.
func (a Arch) libDir() (string, error) {
	switch a {
	case Aarch64, X8664:
		return "lib64", nil
	case I686:
		return "lib", nil
	}
	return "", errors.Wrap(ErrUnsupportedArch, string(a))
}
