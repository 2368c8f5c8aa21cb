package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
)

// Looks up and creates system accounts.
type Accounts interface {
	LookupGroupID(gid uint32) (name string, ok bool, err error)
	LookupUser(name string) (uid uint32, ok bool, err error)
	AddGroup(ctx context.Context, name string, gid uint32) error
	AddUser(ctx context.Context, u User) error
}

// Applies a [Mapping] to the local system.
type Applier struct {
	accounts Accounts                              // System account database.
	chown    func(path string, uid, gid int) error // Changes ownership without following links.
}

// Creates an [Applier] using the system account database and lchown.
func NewApplier() *Applier {
	return &Applier{accounts: systemAccounts{}, chown: os.Lchown}
}

// Applies m with the system account database.
func Apply(ctx context.Context, m Mapping) error {
	return NewApplier().Apply(ctx, m)
}

// Verifies the owned paths, ensures the runtime account, then hands every
// owned path and its contents to the owner.
//
// A missing path fails with [ErrPathMissing] before anything is changed.
func (a *Applier) Apply(ctx context.Context, m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}

	for _, p := range m.OwnedPaths {
		if _, err := os.Lstat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrPathMissing, p)
			}
			return err
		}
	}

	if err := a.ensureAccount(ctx, m.RuntimeUser); err != nil {
		return err
	}

	for _, p := range m.OwnedPaths {
		if err := a.chownTree(ctx, p, m.Owner); err != nil {
			return err
		}
		slog.Info("ownership applied", "path", p, "owner", m.Owner.String())
	}
	return nil
}

// Creates the runtime group and user unless they already exist.
func (a *Applier) ensureAccount(ctx context.Context, u User) error {
	group, ok, err := a.accounts.LookupGroupID(u.GID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccount, err)
	}
	if !ok {
		if err := a.accounts.AddGroup(ctx, u.Group, u.GID); err != nil {
			return fmt.Errorf("%w: add group %s: %w", ErrAccount, u.Group, err)
		}
		slog.Debug("group created", "group", u.Group, "gid", u.GID)
	} else if group != u.Group {
		slog.Debug("reusing existing group", "group", group, "gid", u.GID)
		u.Group = group
	}

	uid, ok, err := a.accounts.LookupUser(u.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccount, err)
	}
	if ok {
		if uid != u.UID {
			return fmt.Errorf("%w: user %s exists with uid %d, want %d", ErrAccount, u.Name, uid, u.UID)
		}
		return nil
	}

	if err := a.accounts.AddUser(ctx, u); err != nil {
		return fmt.Errorf("%w: add user %s: %w", ErrAccount, u.Name, err)
	}
	slog.Debug("user created", "user", u.Name, "uid", u.UID)
	return nil
}

// Changes ownership of root and everything below it.
func (a *Applier) chownTree(ctx context.Context, root string, o Owner) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return a.chown(path, int(o.UID), int(o.GID))
	})
}

// Account database backed by os/user and the busybox account tools.
type systemAccounts struct{}

func (systemAccounts) LookupGroupID(gid uint32) (string, bool, error) {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		var unknown user.UnknownGroupIdError
		if errors.As(err, &unknown) {
			return "", false, nil
		}
		return "", false, err
	}
	return g.Name, true, nil
}

func (systemAccounts) LookupUser(name string) (uint32, bool, error) {
	u, err := user.Lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return 0, false, nil
		}
		return 0, false, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, false, err
	}
	return uint32(uid), true, nil
}

func (systemAccounts) AddGroup(ctx context.Context, name string, gid uint32) error {
	return run(ctx, "addgroup", "-g", strconv.FormatUint(uint64(gid), 10), name)
}

func (systemAccounts) AddUser(ctx context.Context, u User) error {
	return run(ctx, "adduser", "-D", "-H",
		"-u", strconv.FormatUint(uint64(u.UID), 10),
		"-G", u.Group,
		"-h", u.Home,
		"-s", u.Shell,
		u.Name,
	)
}

func run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}
