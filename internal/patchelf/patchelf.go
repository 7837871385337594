package patchelf

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/cruciblehq/rcpr/internal/paths"
)

// Queries and rewrites RPATH directives via the external patchelf tool.
type Patcher struct {
	tool tool // Executes the query and patch operations.
}

// Runs the underlying query and patch operations.
type tool interface {
	print(ctx context.Context, path string) (string, error)
	set(ctx context.Context, path, rpath string) error
}

// Creates a patcher.
//
// When bin is empty the patchelf executable is searched for in the default
// candidate locations; otherwise the given path is used and must exist.
func New(bin string) (*Patcher, error) {
	if bin == "" {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		bin = found
	} else if _, err := os.Stat(bin); err != nil {
		return nil, errors.Wrap(ErrNotFound, bin)
	}

	return &Patcher{tool: execTool{bin: bin}}, nil
}

// Returns the path of the patchelf executable from the default candidate
// locations, or [ErrNotFound].
func Find() (string, error) {
	candidates := paths.PatchelfCandidates()
	for _, dir := range candidates {
		path := filepath.Join(dir, "patchelf")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "looked in %s", strings.Join(candidates, ", "))
}

// Returns the binary's current RPATH directive.
func (p *Patcher) RPath(ctx context.Context, path string) (string, error) {
	return p.tool.print(ctx, path)
}

// Sets the binary's RPATH directive unconditionally.
func (p *Patcher) SetRPath(ctx context.Context, path, rpath string) error {
	return p.tool.set(ctx, path, rpath)
}

// Sets the binary's RPATH directive if it differs from rpath.
//
// Idempotent: an already-patched binary triggers no write. A failed patch
// is fatal, since a binary left with an inconsistent directive would break
// silently at run time instead of failing loudly here.
func (p *Patcher) EnsureRPath(ctx context.Context, path, rpath string) error {
	current, err := p.tool.print(ctx, path)
	if err != nil {
		return err
	}

	if current == rpath {
		return nil
	}

	slog.Debug("patching rpath", "path", path, "rpath", rpath)
	return p.tool.set(ctx, path, rpath)
}

// Drives the patchelf binary through os/exec.
type execTool struct {
	bin string // Path to the patchelf executable.
}

func (t execTool) print(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, t.bin, "--print-rpath", path).Output()
	if err != nil {
		return "", patchErr("--print-rpath", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (t execTool) set(ctx context.Context, path, rpath string) error {
	if _, err := exec.CommandContext(ctx, t.bin, "--set-rpath", rpath, path).Output(); err != nil {
		return patchErr("--set-rpath", path, err)
	}
	return nil
}

// Maps an exec failure to [ErrPatch], surfacing captured stderr when the
// tool exited non-zero.
func patchErr(op, path string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return errors.Wrapf(ErrPatch, "%s %s: %s", op, path, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return errors.Wrapf(ErrPatch, "%s %s: %v", op, path, err)
}
