package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/packaging"
	"github.com/cruciblehq/forgepack/internal/paths"
)

// Represents the 'forgepack render' command.
type RenderCmd struct {
	Profile string `env:"FORGEPACK_PROFILE" default:"minimal" enum:"minimal,full-admin" help:"Packaging profile (${enum})."`
	Out     string `short:"o" default:"-" help:"Destination file, or - for stdout." placeholder:"PATH"`
}

// Executes the render command.
func (c *RenderCmd) Run(ctx context.Context) error {
	data, err := packaging.ForProfile(descriptor.Profile(c.Profile)).Render()
	if err != nil {
		return err
	}

	if c.Out == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(c.Out, data, paths.DefaultFileMode); err != nil {
		return err
	}
	slog.Info("dockerfile rendered", "path", c.Out, "profile", c.Profile)
	return nil
}
