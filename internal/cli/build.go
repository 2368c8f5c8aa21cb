package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cruciblehq/forgepack/internal/build"
	"github.com/cruciblehq/forgepack/internal/builder"
	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/paths"
	"github.com/cruciblehq/forgepack/internal/pipeline"
	"github.com/cruciblehq/forgepack/internal/registry"
	"github.com/cruciblehq/forgepack/internal/runtime"
)

// Represents the 'forgepack build' command.
type BuildCmd struct {
	Descriptor  string            `short:"f" env:"FORGEPACK_DESCRIPTOR" default:"forgepack.yaml" help:"Descriptor file. A missing default file selects the built-in target." placeholder:"PATH"`
	Target      string            `short:"t" env:"FORGEPACK_TARGET" help:"Target to build. Defaults to the descriptor's default target." placeholder:"NAME"`
	Platforms   []string          `short:"p" name:"platform" env:"FORGEPACK_PLATFORMS" sep:"," help:"Replace the target platforms." placeholder:"PLATFORM"`
	Tags        []string          `name:"tag" env:"FORGEPACK_TAGS" sep:"," help:"Replace the target tags." placeholder:"REF"`
	Output      string            `short:"o" env:"FORGEPACK_OUTPUT" help:"Replace the output mode (local or registry-push)." placeholder:"MODE"`
	Profile     string            `env:"FORGEPACK_PROFILE" help:"Replace the packaging profile (minimal or full-admin)." placeholder:"PROFILE"`
	Context     string            `env:"FORGEPACK_CONTEXT" help:"Replace the build context directory. Absolute paths must lie within the descriptor directory." placeholder:"DIR"`
	Dockerfile  string            `env:"FORGEPACK_DOCKERFILE" help:"Replace the Dockerfile path, relative to the context. A missing Dockerfile is rendered from the profile." placeholder:"PATH"`
	Labels      map[string]string `short:"l" name:"label" help:"Add or replace an image label." placeholder:"KEY=VALUE"`
	Containerd  string            `env:"CONTAINERD_ADDRESS" help:"Import local output into the containerd daemon at this address." placeholder:"PATH"`
	Namespace   string            `env:"CONTAINERD_NAMESPACE" default:"default" help:"Containerd namespace for imported images."`
	Timeout     time.Duration     `env:"FORGEPACK_TIMEOUT" help:"Abort the run after this long. Zero waits indefinitely."`
	MetricsFile string            `env:"FORGEPACK_METRICS_FILE" help:"Write run metrics in Prometheus text format to this file." placeholder:"PATH"`
}

// Executes the build command.
//
// Loads and validates the target, runs the pipeline and prints a summary.
// The summary is printed even when the run fails.
func (c *BuildCmd) Run(ctx context.Context) error {
	target, err := c.target()
	if err != nil {
		return err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	driver, err := builder.NewDockerContainerDriverFromEnv()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Authenticator: registry.NewAuthenticator(),
		Builders:      builder.NewManager(driver, builder.NewFileStore(paths.Builders())),
		Engine:        build.NewEngine(),
		Publisher:     registry.NewPublisher(),
	}

	if c.Containerd != "" && !target.Pushes() {
		rt, err := runtime.New(c.Containerd, c.Namespace)
		if err != nil {
			return err
		}
		defer rt.Close()
		opts.Importer = rt
	}

	if c.MetricsFile != "" {
		opts.Metrics = pipeline.NewMetrics()
	}

	result, runErr := pipeline.New(opts).Run(ctx, target)
	if err := pipeline.WriteSummary(os.Stdout, result); err != nil {
		slog.Warn("failed to print summary", "error", err)
	}

	if opts.Metrics != nil {
		if err := opts.Metrics.WriteFile(c.MetricsFile); err != nil {
			slog.Warn("failed to write metrics", "path", c.MetricsFile, "error", err)
		}
	}

	return runErr
}

// Loads the descriptor and selects the target with overrides applied.
func (c *BuildCmd) target() (*descriptor.Target, error) {
	optional := c.Descriptor == descriptor.DefaultFilename
	file, err := descriptor.Load(c.Descriptor, optional)
	if err != nil {
		return nil, err
	}

	return file.Select(c.Target, c.overrides())
}

// Returns the descriptor overrides given on the command line or in the
// environment.
func (c *BuildCmd) overrides() descriptor.Overrides {
	return descriptor.Overrides{
		Context:   c.Context,
		BuildFile: c.Dockerfile,
		Platforms: c.Platforms,
		Tags:      c.Tags,
		Output:    descriptor.OutputMode(c.Output),
		Profile:   descriptor.Profile(c.Profile),
		Labels:    c.Labels,
	}
}
