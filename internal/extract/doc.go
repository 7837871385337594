// Package extract turns an unpacked manylinux image tree into a
// self-contained, relocatable CPython runtime bundle.
//
// An [Extractor] is built once per image tree: the interpreter install
// prefix, implementation, and version are derived from the version-tagged
// symlink under opt/python, the shared-library search path is fixed from
// the target architecture, and the exclusion list and patchelf tool are
// loaded. All derived state is immutable afterward.
//
// [Extractor.Extract] then performs a single forward pass: it copies the
// interpreter, its standard library, and its headers into the destination,
// computes the transitive shared-library closure of the interpreter and
// every compiled extension module, copies the closure into the bundle's
// flat lib/ directory, and patches every copied binary with an
// $ORIGIN-relative search directive. There is no rollback: a failed
// extraction may leave a partial bundle behind, and callers must treat an
// existing destination as valid only after Extract returns success.
//
// Bundle layout:
//
//	bin/pythonX.Y       interpreter executable
//	bin/pythonX         symlink to pythonX.Y
//	bin/python          symlink to pythonX
//	lib/pythonX.Y/      standard library (symlinks preserved)
//	include/<name>/     public headers
//	lib/                flattened shared-library dependencies
package extract
