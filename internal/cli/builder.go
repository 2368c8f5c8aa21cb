package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cruciblehq/forgepack/internal/builder"
	"github.com/cruciblehq/forgepack/internal/paths"
)

// Represents the 'forgepack builder' command group.
type BuilderCmd struct {
	Ensure BuilderEnsureCmd `cmd:"" help:"Create or reuse a builder able to target a platform, and select it."`
	Ls     BuilderLsCmd     `cmd:"" help:"List known builders."`
}

// Represents the 'forgepack builder ensure' command.
type BuilderEnsureCmd struct {
	Platform string `arg:"" default:"${default_platform}" help:"Platform the builder must target."`
}

// Executes the builder ensure command.
func (c *BuilderEnsureCmd) Run(ctx context.Context) error {
	driver, err := builder.NewDockerContainerDriverFromEnv()
	if err != nil {
		return err
	}

	inst, err := builder.NewManager(driver, builder.NewFileStore(paths.Builders())).Ensure(ctx, c.Platform)
	if err != nil {
		return err
	}

	fmt.Println(inst.Name)
	return nil
}

// Represents the 'forgepack builder ls' command.
type BuilderLsCmd struct{}

// Executes the builder ls command. The selected builder is marked with '*'.
func (c *BuilderLsCmd) Run(ctx context.Context) error {
	list, current, err := builder.NewManager(nil, builder.NewFileStore(paths.Builders())).List()
	if err != nil {
		return err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDRIVER\tPLATFORMS\tCREATED")
	for _, inst := range list {
		name := inst.Name
		if name == current {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			name, inst.Driver, strings.Join(inst.Platforms, ","), inst.Created.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
