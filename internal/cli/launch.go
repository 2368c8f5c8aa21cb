package cli

import (
	"context"
	"time"

	"github.com/cruciblehq/forgepack/internal/launch"
)

// Represents the 'forgepack launch' command.
type LaunchCmd struct {
	EnvFile []string `name:"env-file" help:"Environment files read before resolving the configuration (default .env)." placeholder:"PATH"`
	Command []string `arg:"" passthrough:"" help:"Service command and its arguments."`
}

// Executes the launch command. On success the process is replaced by the
// service and the call never returns.
func (c *LaunchCmd) Run(ctx context.Context) error {
	cfg, err := launch.Load(c.EnvFile...)
	if err != nil {
		return err
	}
	return launch.Launch(ctx, cfg, c.Command)
}

// Represents the 'forgepack healthcheck' command.
type HealthcheckCmd struct {
	Timeout time.Duration `default:"10s" help:"Time allowed for the probe."`
}

// Executes the healthcheck command. A non-nil error marks the service
// unhealthy through the exit code.
func (c *HealthcheckCmd) Run(ctx context.Context) error {
	cfg, err := launch.Load()
	if err != nil {
		return err
	}
	return launch.Probe(ctx, cfg, c.Timeout)
}
