package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/cruciblehq/rcpr/internal/archive"
	"github.com/cruciblehq/rcpr/internal/extract"
)

// Represents the 'rcpr extract' command.
type ExtractCmd struct {
	Arch        string `required:"" enum:"aarch64,i686,x86_64" help:"Target architecture."`
	Prefix      string `required:"" type:"existingdir" help:"Path to the exported container image root."`
	Tag         string `required:"" help:"Python binary tag (e.g. cp311-cp311; select from symlinks in PREFIX/opt/python)."`
	Output      string `short:"o" required:"" help:"Destination for the runtime bundle." placeholder:"DIR"`
	Archive     bool   `help:"Also pack the bundle into OUTPUT.tar.gz."`
	ExcludeList string `help:"Override the built-in shared-library exclude list." placeholder:"PATH"`
	Patchelf    string `help:"Path to the patchelf executable." placeholder:"PATH"`
}

// Executes the extract command.
//
// The output path must not exist; extraction never overwrites a previous
// bundle.
func (c *ExtractCmd) Run(ctx context.Context) error {
	if _, err := os.Lstat(c.Output); err == nil {
		return errors.Wrap(extract.ErrDestinationExists, c.Output)
	}

	extractor, err := extract.New(extract.Options{
		Arch:        extract.Arch(c.Arch),
		Prefix:      c.Prefix,
		Tag:         c.Tag,
		ExcludeList: c.ExcludeList,
		Patchelf:    c.Patchelf,
	})
	if err != nil {
		return err
	}

	slog.Info("located interpreter",
		"implementation", extractor.Implementation(),
		"version", extractor.Version().Long(),
		"prefix", extractor.InstallPrefix(),
	)

	if err := extractor.Extract(ctx, c.Output); err != nil {
		return err
	}

	slog.Info("runtime extracted", "output", c.Output)

	if c.Archive {
		out := c.Output + ".tar.gz"
		if err := archive.Create(c.Output, out); err != nil {
			return err
		}
		slog.Info("bundle archived", "path", out)
	}

	return nil
}
