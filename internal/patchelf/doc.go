// Package patchelf rewrites the run-time library search path (RPATH) of
// ELF binaries by driving the external patchelf tool.
//
// A [Patcher] queries the current directive before writing: binaries whose
// RPATH already matches are left untouched, so repeated extractions and
// re-entrant patch calls are safe and cheap. Directives are expressed with
// the $ORIGIN token relative to the binary's own location; absolute paths
// are never written, since the bundle must run from any filesystem
// location.
package patchelf
