package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	programName = "rcpr"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory where pulled image trees are stored.
//
//	Linux:   ~/.cache/rcpr/images
//	macOS:   ~/Library/Caches/rcpr/images
func Images() string {
	return filepath.Join(xdg.CacheHome, programName, "images")
}

// Candidate locations for the patchelf executable, in search order.
//
// Rocky Linux installs patchelf into /bin. The directory containing the
// running executable covers bundled tool distributions, and ~/.local/bin
// covers per-user pip installs.
func PatchelfCandidates() []string {
	candidates := []string{"/bin"}

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Dir(exe))
	}

	return append(candidates, filepath.Join(xdg.Home, ".local", "bin"))
}
