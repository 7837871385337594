package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/rcpr/internal"
)

// Represents the root command for the rcpr tool.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Pull    PullCmd    `cmd:"" help:"Pull a manylinux image and unpack it to a directory tree."`
	Extract ExtractCmd `cmd:"" help:"Extract a relocatable CPython runtime from an image tree."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Extracts relocatable CPython runtimes from manylinux images.\n\nPulls a published manylinux build image, locates the embedded interpreter, and produces a self-contained bundle that runs from any filesystem location."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()

	var level slog.Level
	if debug {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelWarn
	} else {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler.WithGroup(internal.Name)))
}
