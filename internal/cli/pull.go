package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/rcpr/internal/image"
	"github.com/cruciblehq/rcpr/internal/paths"
)

// Represents the 'rcpr pull' command.
type PullCmd struct {
	Image  string `required:"" help:"Image name or reference (bare names resolve under quay.io/pypa)."`
	Tag    string `help:"Image tag. Defaults to the reference's tag, then to latest."`
	Output string `short:"o" help:"Destination directory for the unpacked image tree." placeholder:"DIR"`
}

// Executes the pull command.
//
// Without an explicit output the tree lands in the image cache directory.
func (c *PullCmd) Run(ctx context.Context) error {
	client, err := image.NewClient(ctx, c.Image)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = filepath.Join(paths.Images(), slug(c.Image))
	}

	if err := client.Pull(ctx, output, c.Tag); err != nil {
		return err
	}

	slog.Info("image tree ready", "path", output)
	return nil
}

// Converts an image reference to a filesystem-safe directory name.
func slug(image string) string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(image)
}
