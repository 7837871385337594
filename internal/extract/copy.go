package extract

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cruciblehq/rcpr/internal/paths"
)

// Copies a single file, following symlinks so the destination is a real
// file. The source's permission bits are preserved.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// O_CREATE applies the umask; enforce the source mode on the result.
	return os.Chmod(dst, info.Mode().Perm())
}

// Copies a directory tree, preserving symlinks as symlinks.
//
// Destination directories may already exist, so repeated copies are
// possible without wiping unrelated files. Read-only destination files are
// not forced; overwriting one fails.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return replaceSymlink(link, target)

		case d.IsDir():
			return os.MkdirAll(target, paths.DefaultDirMode)

		default:
			return copyLiteral(path, target, d)
		}
	})
}

// Copies one regular file without following a symlink chain, preserving
// its permission bits.
func copyLiteral(src, dst string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Creates a symlink, replacing any existing file or link at linkPath.
func replaceSymlink(target, linkPath string) error {
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, linkPath)
}

// Adds the owner-write bit when the file lacks it.
func grantOwnerWrite(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0200 != 0 {
		return nil
	}
	return os.Chmod(path, info.Mode().Perm()|0200)
}
