package identity

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const (

	// Uid and gid owning shares on the deployment host (first admin user and
	// the users group).
	DefaultOwnerUID = 1026
	DefaultOwnerGID = 100

	// Runtime account defaults.
	DefaultUserName  = "translator"
	DefaultGroupName = "users"
	DefaultHome      = "/app"
	DefaultShell     = "/sbin/nologin"
)

// The non-privileged account the service runs as.
type User struct {
	Name  string `yaml:"name"`  // Account name.
	UID   uint32 `yaml:"uid"`   // Numeric user id, never 0.
	GID   uint32 `yaml:"gid"`   // Numeric primary group id.
	Group string `yaml:"group"` // Primary group name.
	Home  string `yaml:"home"`  // Home directory.
	Shell string `yaml:"shell"` // Login shell.
}

// Ownership expected by the host for mounted paths.
type Owner struct {
	UID uint32 `yaml:"uid"`
	GID uint32 `yaml:"gid"`
}

// Relates the runtime user to host ownership of a set of paths.
type Mapping struct {
	RuntimeUser User     `yaml:"user"`  // Account the service runs as.
	Owner       Owner    `yaml:"owner"` // Host ownership applied to OwnedPaths.
	OwnedPaths  []string `yaml:"paths"` // Absolute paths handed to Owner.
}

// Returns the mapping for the default deployment host.
//
// The runtime user shares the host owner's ids so files it writes to mounted
// shares are immediately usable on the host.
func Default() Mapping {
	return Mapping{
		RuntimeUser: User{
			Name:  DefaultUserName,
			UID:   DefaultOwnerUID,
			GID:   DefaultOwnerGID,
			Group: DefaultGroupName,
			Home:  DefaultHome,
			Shell: DefaultShell,
		},
		Owner: Owner{UID: DefaultOwnerUID, GID: DefaultOwnerGID},
	}
}

// Checks the mapping. The runtime user must be named and must not be root.
func (m Mapping) Validate() error {
	u := m.RuntimeUser
	if u.Name == "" || u.Group == "" {
		return fmt.Errorf("%w: runtime user and group names are required", ErrIdentityInvalid)
	}
	if u.UID == 0 || u.Name == "root" {
		return fmt.Errorf("%w: runtime user must not be root", ErrIdentityInvalid)
	}
	for _, p := range m.OwnedPaths {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("%w: owned path %q is not absolute", ErrIdentityInvalid, p)
		}
	}
	return nil
}

// Returns the OCI process user for the runtime account.
func (m Mapping) Spec() specs.User {
	return specs.User{
		UID:      m.RuntimeUser.UID,
		GID:      m.RuntimeUser.GID,
		Username: m.RuntimeUser.Name,
	}
}

// Returns the "uid:gid" form used by the image config USER field.
func (u User) String() string {
	return strconv.FormatUint(uint64(u.UID), 10) + ":" + strconv.FormatUint(uint64(u.GID), 10)
}

// Returns the "uid:gid" form of the owner.
func (o Owner) String() string {
	return strconv.FormatUint(uint64(o.UID), 10) + ":" + strconv.FormatUint(uint64(o.GID), 10)
}

// Parses an owner in "uid:gid" form.
func ParseOwner(s string) (Owner, error) {
	u, g, ok := strings.Cut(s, ":")
	if !ok {
		return Owner{}, fmt.Errorf("%w: owner %q, want uid:gid", ErrIdentityInvalid, s)
	}

	uid, err := strconv.ParseUint(u, 10, 32)
	if err != nil {
		return Owner{}, fmt.Errorf("%w: owner %q: %w", ErrIdentityInvalid, s, err)
	}
	gid, err := strconv.ParseUint(g, 10, 32)
	if err != nil {
		return Owner{}, fmt.Errorf("%w: owner %q: %w", ErrIdentityInvalid, s, err)
	}

	return Owner{UID: uint32(uid), GID: uint32(gid)}, nil
}
