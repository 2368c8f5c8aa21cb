package cli

import (
	"context"

	"github.com/cruciblehq/forgepack/internal/identity"
)

// Represents the 'forgepack ownership' command group.
type OwnershipCmd struct {
	Apply OwnershipApplyCmd `cmd:"" help:"Create the runtime user and hand owned paths to the host owner."`
}

// Represents the 'forgepack ownership apply' command.
type OwnershipApplyCmd struct {
	User  string   `default:"translator" help:"Runtime user name."`
	UID   uint32   `name:"uid" default:"1026" help:"Runtime user id. Must not be 0."`
	GID   uint32   `name:"gid" default:"100" help:"Runtime group id."`
	Group string   `default:"users" help:"Runtime group name."`
	Home  string   `default:"/app" help:"Runtime user home directory."`
	Shell string   `default:"/sbin/nologin" help:"Runtime user shell."`
	Owner string   `default:"${default_owner}" help:"Host owner of the paths, as uid:gid."`
	Paths []string `name:"path" required:"" help:"Path whose ownership is handed to the owner. Must exist." placeholder:"PATH"`
}

// Executes the ownership apply command.
func (c *OwnershipApplyCmd) Run(ctx context.Context) error {
	m, err := c.mapping()
	if err != nil {
		return err
	}
	return identity.Apply(ctx, m)
}

// Builds the identity mapping from the flags.
func (c *OwnershipApplyCmd) mapping() (identity.Mapping, error) {
	owner, err := identity.ParseOwner(c.Owner)
	if err != nil {
		return identity.Mapping{}, err
	}

	return identity.Mapping{
		RuntimeUser: identity.User{
			Name:  c.User,
			UID:   c.UID,
			GID:   c.GID,
			Group: c.Group,
			Home:  c.Home,
			Shell: c.Shell,
		},
		Owner:      owner,
		OwnedPaths: c.Paths,
	}, nil
}
