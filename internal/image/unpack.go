package image

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/cruciblehq/rcpr/internal/paths"
)

const (

	// Filename prefix marking a deleted path in the layer below.
	whiteoutPrefix = ".wh."

	// Special whiteout clearing a directory's pre-existing contents.
	opaqueWhiteout = ".wh..wh..opq"
)

// Applies one gzip-compressed layer tarball to the destination tree.
//
// Entries are extracted with owner read-write forced so later layers and
// the extractor can always override them. Whiteout entries delete the
// corresponding paths from earlier layers.
func applyLayer(archivePath, destination string) error {
	if err := os.MkdirAll(destination, paths.DefaultDirMode); err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(ErrUnpack, "%s: %v", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(ErrUnpack, "%s: %v", archivePath, err)
		}
		if err := applyEntry(destination, hdr, tr); err != nil {
			return err
		}
	}

	return nil
}

// Applies a single tar entry to the destination tree.
func applyEntry(destination string, hdr *tar.Header, r io.Reader) error {
	target, err := securePath(destination, hdr.Name)
	if err != nil {
		return err
	}

	base := filepath.Base(hdr.Name)
	if base == opaqueWhiteout {
		return clearDir(filepath.Dir(target))
	}
	if strings.HasPrefix(base, whiteoutPrefix) {
		return os.RemoveAll(filepath.Join(filepath.Dir(target), strings.TrimPrefix(base, whiteoutPrefix)))
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, entryMode(hdr)|0700)

	case tar.TypeReg:
		return writeEntry(target, entryMode(hdr)|0600, r)

	case tar.TypeSymlink:
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(hdr.Linkname, target)

	case tar.TypeLink:
		source, err := securePath(destination, hdr.Linkname)
		if err != nil {
			return err
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Link(source, target)
	}

	// Device nodes and FIFOs cannot be created unprivileged and are of no
	// use in a build image tree.
	return nil
}

// Writes a regular file entry, creating parents as needed.
func writeEntry(target string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), paths.DefaultDirMode); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Chmod(target, mode)
}

// Removes everything inside dir, leaving dir itself in place.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Resolves an archive member name inside destination, rejecting anything
// that would escape it.
func securePath(destination, name string) (string, error) {
	target := filepath.Join(destination, name)
	if target != destination && !strings.HasPrefix(target, destination+string(os.PathSeparator)) {
		return "", errors.Wrapf(ErrUnpack, "entry %q escapes the destination", name)
	}
	return target, nil
}

// Returns the entry's permission bits.
func entryMode(hdr *tar.Header) os.FileMode {
	return os.FileMode(hdr.Mode).Perm()
}
