package extract

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/cruciblehq/rcpr/internal/dynlib"
	"github.com/cruciblehq/rcpr/internal/patchelf"
	"github.com/cruciblehq/rcpr/internal/paths"
)

// Self-relative search-directive token understood by the dynamic loader.
const origin = "$ORIGIN"

// Relative path of the version-tagged interpreter links inside an image.
const pythonLinkDir = "opt/python"

// Controls extractor construction.
type Options struct {
	Arch        Arch   // Target architecture.
	Prefix      string // Path to the unpacked image root.
	Tag         string // Python binary tag (e.g. "cp311-cp311").
	ExcludeList string // Optional override for the embedded exclude list.
	Patchelf    string // Optional explicit patchelf executable.
}

// Computes transitive shared-library closures across entry points.
type dependencyResolver interface {
	Resolve(binary string, closure dynlib.Closure) error
}

// Applies idempotent RPATH directives.
type relocationPatcher interface {
	EnsureRPath(ctx context.Context, path, rpath string) error
}

// Extracts a relocatable CPython runtime from a manylinux image tree.
//
// All fields are derived once by [New] and never reassigned.
type Extractor struct {
	arch         Arch
	prefix       string             // Image root.
	impl         Impl               // Interpreter implementation.
	version      Version            // Interpreter version.
	pythonPrefix string             // Interpreter install prefix inside the image.
	searchPath   []string           // Shared-library search directories, in priority order.
	resolver     dependencyResolver // Dependency closure computation.
	patcher      relocationPatcher  // RPATH rewriting.
}

// Creates an extractor for one image tree.
//
// The interpreter installation is located through the version-tagged
// symlink under opt/python; relative link targets and unrecognized
// implementation names fail with [ErrUnsupportedLayout]. The library
// search path is fixed from the architecture (arch lib directory, then
// usr/local/lib, then a bundled OpenSSL lib directory when present).
func New(opts Options) (*Extractor, error) {
	link, err := os.Readlink(filepath.Join(opts.Prefix, pythonLinkDir, opts.Tag))
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "no interpreter link for tag %q: %v", opts.Tag, err)
	}
	if !path.IsAbs(link) {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "interpreter link %q is not chrooted", link)
	}

	// Both /opt/_internal/cpython-X.Y.Z and .../cpython-X.Y.Z/bin forms
	// occur; either way the install prefix is the versioned directory.
	target := strings.TrimSuffix(path.Clean(link), "/bin")

	implName, verStr, ok := strings.Cut(path.Base(target), "-")
	if !ok || Impl(implName) != CPython {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "unrecognized interpreter %q", path.Base(target))
	}

	version, err := ParseVersion(verStr)
	if err != nil {
		return nil, err
	}

	searchPath, err := librarySearchPath(opts.Arch, opts.Prefix)
	if err != nil {
		return nil, err
	}

	excluded, err := loadExcludes(opts.ExcludeList)
	if err != nil {
		return nil, err
	}

	patcher, err := patchelf.New(opts.Patchelf)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		arch:         opts.Arch,
		prefix:       opts.Prefix,
		impl:         CPython,
		version:      version,
		pythonPrefix: filepath.Join(opts.Prefix, strings.TrimPrefix(target, "/")),
		searchPath:   searchPath,
		resolver:     dynlib.NewResolver(searchPath, excluded),
		patcher:      patcher,
	}, nil
}

// Returns the interpreter implementation.
func (e *Extractor) Implementation() Impl {
	return e.impl
}

// Returns the interpreter version.
func (e *Extractor) Version() Version {
	return e.version
}

// Returns the interpreter install prefix inside the image tree.
func (e *Extractor) InstallPrefix() string {
	return e.pythonPrefix
}

// Builds the ordered shared-library search path for an image root.
func librarySearchPath(arch Arch, prefix string) ([]string, error) {
	libDir, err := arch.libDir()
	if err != nil {
		return nil, err
	}

	searchPath := []string{
		filepath.Join(prefix, libDir),
		filepath.Join(prefix, "usr/local/lib"),
	}

	// Manylinux images carry their own OpenSSL build next to the
	// interpreters.
	ssl, err := filepath.Glob(filepath.Join(prefix, "opt/_internal/openssl-*"))
	if err == nil && len(ssl) > 0 {
		searchPath = append(searchPath, filepath.Join(ssl[0], "lib"))
	}

	return searchPath, nil
}

// Extracts the runtime into destination.
//
// The destination must not exist. On failure the destination is left in a
// partial state; callers must only treat it as a valid bundle after a
// successful return.
func (e *Extractor) Extract(ctx context.Context, destination string) error {
	if _, err := os.Lstat(destination); err == nil {
		return errors.Wrap(ErrDestinationExists, destination)
	} else if !os.IsNotExist(err) {
		return err
	}

	python := "python" + e.version.Short()
	runtimeRel := filepath.Join("bin", python)
	packagesRel := filepath.Join("lib", python)

	includeRel, err := e.includeDir()
	if err != nil {
		return err
	}

	slog.Info("extracting runtime",
		"arch", e.arch,
		"version", e.version.Long(),
		"prefix", e.pythonPrefix,
		"destination", destination,
	)

	if err := e.cloneInterpreter(destination, python, runtimeRel); err != nil {
		return err
	}

	for _, folder := range []string{packagesRel, includeRel} {
		if err := copyTree(filepath.Join(e.pythonPrefix, folder), filepath.Join(destination, folder)); err != nil {
			return err
		}
	}

	closure, err := e.resolveClosure(runtimeRel, packagesRel)
	if err != nil {
		return err
	}

	if err := e.installDependencies(ctx, destination, closure); err != nil {
		return err
	}

	return e.patchBinaries(ctx, destination, runtimeRel, packagesRel)
}

// Locates the single public header directory under the interpreter prefix
// and returns it relative to the prefix (e.g. "include/python3.11").
func (e *Extractor) includeDir() (string, error) {
	include, err := filepath.Glob(filepath.Join(e.pythonPrefix, "include", "*"))
	if err != nil || len(include) == 0 {
		return "", errors.Wrapf(ErrUnsupportedLayout, "no include directory under %s", e.pythonPrefix)
	}
	return filepath.Join("include", filepath.Base(include[0])), nil
}

// Copies the interpreter executable and creates the convenience symlinks
// bin/pythonN -> pythonN.M and bin/python -> pythonN. Existing links are
// replaced, not merged.
func (e *Extractor) cloneInterpreter(destination, python, runtimeRel string) error {
	if err := os.MkdirAll(filepath.Join(destination, "bin"), paths.DefaultDirMode); err != nil {
		return err
	}

	if err := copyFile(filepath.Join(e.pythonPrefix, runtimeRel), filepath.Join(destination, runtimeRel)); err != nil {
		return err
	}

	major := fmt.Sprintf("python%d", e.version.Major)
	if err := replaceSymlink(python, filepath.Join(destination, "bin", major)); err != nil {
		return err
	}
	return replaceSymlink(major, filepath.Join(destination, "bin", "python"))
}

// Computes the dependency closure over the interpreter executable and
// every compiled extension module in the standard library.
func (e *Extractor) resolveClosure(runtimeRel, packagesRel string) (dynlib.Closure, error) {
	closure := dynlib.Closure{}

	if err := e.resolver.Resolve(filepath.Join(e.pythonPrefix, runtimeRel), closure); err != nil {
		return nil, err
	}

	modules, err := filepath.Glob(filepath.Join(e.pythonPrefix, packagesRel, "lib-dynload", "*.so"))
	if err != nil {
		return nil, err
	}
	for _, module := range modules {
		if err := e.resolver.Resolve(module, closure); err != nil {
			return nil, err
		}
	}

	slog.Debug("dependency closure resolved", "libraries", len(closure))
	return closure, nil
}

// Copies every closure entry into the bundle's flat lib/ directory and
// patches it to search its own directory.
//
// Copies follow symlinks so each bundled library is a real file. System
// libraries are frequently read-only at the source; the copy is granted
// owner write so it stays patchable.
func (e *Extractor) installDependencies(ctx context.Context, destination string, closure dynlib.Closure) error {
	libDir := filepath.Join(destination, "lib")
	if err := os.MkdirAll(libDir, paths.DefaultDirMode); err != nil {
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(closure)) {
		dst := filepath.Join(libDir, name)

		if err := copyFile(closure[name], dst); err != nil {
			return err
		}
		if err := grantOwnerWrite(dst); err != nil {
			return err
		}
		if err := e.patcher.EnsureRPath(ctx, dst, origin); err != nil {
			return err
		}
	}

	return nil
}

// Patches every copied extension module and the interpreter executable to
// search the bundle's lib/ directory relative to their own location.
func (e *Extractor) patchBinaries(ctx context.Context, destination, runtimeRel, packagesRel string) error {
	libDir := filepath.Join(destination, "lib")

	modules, err := filepath.Glob(filepath.Join(destination, packagesRel, "lib-dynload", "*.so"))
	if err != nil {
		return err
	}
	for _, module := range modules {
		rel, err := filepath.Rel(filepath.Dir(module), libDir)
		if err != nil {
			return err
		}
		if err := e.patcher.EnsureRPath(ctx, module, origin+"/"+filepath.ToSlash(rel)); err != nil {
			return err
		}
	}

	runtime := filepath.Join(destination, runtimeRel)
	rel, err := filepath.Rel(filepath.Dir(runtime), libDir)
	if err != nil {
		return err
	}
	return e.patcher.EnsureRPath(ctx, runtime, origin+"/"+filepath.ToSlash(rel))
}
