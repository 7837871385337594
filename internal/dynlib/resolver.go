package dynlib

import "log/slog"

// Maps a library's base name to its resolved absolute source path.
//
// Keys are unique: a name is resolved at most once even when reached via
// multiple dependency paths, which bounds the recursive graph walk.
type Closure map[string]string

// Reads the declared shared-library names (NEEDED entries) of a binary.
type MetadataReader interface {
	Needed(path string) ([]string, error)
}

// Computes transitive shared-library closures.
type Resolver struct {
	locator  *Locator            // Search-path lookup for bare names.
	excluded map[string]struct{} // Library names never resolved or bundled.
	reader   MetadataReader      // NEEDED-entry reader, debug/elf by default.
}

// Creates a resolver over the given search path and exclusion list.
func NewResolver(searchPath, excluded []string) *Resolver {
	set := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		set[name] = struct{}{}
	}
	return &Resolver{
		locator:  NewLocator(searchPath),
		excluded: set,
		reader:   elfReader{},
	}
}

// Adds the transitive dependencies of binary to the closure.
//
// Traversal is depth-first in declaration order. Each discovered name is
// inserted into the closure before its own dependencies are resolved, so a
// library that directly or transitively depends on itself is visited at
// most once and cyclic graphs terminate. The same closure may be passed
// across calls to accumulate the union over several entry points.
//
// Any lookup failure aborts the whole resolution; there is no best-effort
// mode, since a bundle missing one library is silently broken at run time.
func (r *Resolver) Resolve(binary string, closure Closure) error {
	needed, err := r.reader.Needed(binary)
	if err != nil {
		return err
	}

	for _, name := range needed {
		if _, ok := closure[name]; ok {
			continue
		}
		if _, ok := r.excluded[name]; ok {
			slog.Debug("dependency excluded", "name", name)
			continue
		}

		path, err := r.locator.Locate(name)
		if err != nil {
			return err
		}

		// Insert before recursing. Checking membership only after a
		// subtree is fully resolved would not terminate on cycles.
		closure[name] = path

		if err := r.Resolve(path, closure); err != nil {
			return err
		}
	}

	return nil
}
