// Package dynlib resolves the shared libraries an ELF binary needs at
// run time.
//
// A [Locator] maps bare library names (e.g. "libssl.so.1.1") to files by
// probing an ordered list of search directories; the first match wins. A
// [Resolver] walks the NEEDED entries of a binary and of every library it
// pulls in, accumulating the transitive closure as a [Closure] keyed by
// library name. Names on the exclusion list are assumed present on any
// target host and never enter the closure.
//
// A single Closure can be shared across multiple Resolve calls, so the
// dependencies of several entry points (an interpreter plus its compiled
// extension modules) are collected exactly once each.
package dynlib
