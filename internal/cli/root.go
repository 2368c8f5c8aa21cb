package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/forgepack/internal"
	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/identity"
)

// Represents the root command for forgepack.
var RootCmd struct {
	Quiet       bool           `short:"q" help:"Suppress informational output."`
	Verbose     bool           `short:"v" help:"Enable verbose output."`
	Debug       bool           `short:"d" help:"Enable debug output."`
	Build       BuildCmd       `cmd:"" default:"withargs" help:"Build a target and publish it (default)."`
	Builder     BuilderCmd     `cmd:"" help:"Manage builders."`
	Render      RenderCmd      `cmd:"" help:"Render the image Dockerfile for a packaging profile."`
	Launch      LaunchCmd      `cmd:"" help:"Start the service inside the image."`
	Healthcheck HealthcheckCmd `cmd:"" help:"Probe the service liveness endpoint."`
	Ownership   OwnershipCmd   `cmd:"" help:"Manage runtime identity and path ownership."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds and publishes the translation proxy image.\n\nWithout a command, builds the default target of forgepack.yaml (or the built-in target when the file is absent)."),
		kong.UsageOnError(),
		vars(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
//
// Flags only ever enable a switch; switches seeded by linker flags stay on.
func configureLogger() {
	if RootCmd.Debug {
		internal.SetDebug(true)
	}
	if RootCmd.Quiet {
		internal.SetQuiet(true)
	}
	if RootCmd.Verbose {
		internal.SetVerbose(true)
	}

	slog.SetDefault(internal.NewLogger(os.Stderr))
}

// Returns the variables interpolated into flag defaults and help.
func vars() kong.Vars {
	return kong.Vars{
		"version":          internal.VersionString(),
		"default_platform": descriptor.DefaultPlatform,
		"default_owner":    identity.Owner{UID: identity.DefaultOwnerUID, GID: identity.DefaultOwnerGID}.String(),
	}
}
