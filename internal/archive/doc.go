// Package archive packs a finished runtime bundle into a gzip-compressed
// tar archive for distribution.
package archive
