package launch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Starts the service process once the environment checks pass.
type Launcher struct {
	geteuid func() int                                   // Effective uid of the launcher.
	exec    func(argv0 string, argv, env []string) error // Replaces the current process.
}

// Creates a [Launcher] that replaces the current process.
func NewLauncher() *Launcher {
	return &Launcher{geteuid: os.Geteuid, exec: syscall.Exec}
}

// Launches argv with cfg using a default [Launcher].
func Launch(ctx context.Context, cfg *Config, argv []string) error {
	return NewLauncher().Launch(ctx, cfg, argv)
}

// Checks the process identity and storage path, then executes argv with the
// resolved configuration added to the environment.
//
// On success the call does not return. A privileged identity fails with
// [ErrPrivileged] and an unusable storage path with [ErrConfigInvalid].
func (l *Launcher) Launch(ctx context.Context, cfg *Config, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%w: no service command", ErrConfigInvalid)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if l.geteuid() == 0 {
		return ErrPrivileged
	}

	if err := checkWritable(cfg.StoragePath); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigInvalid, EnvStoragePath, err)
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	slog.Info("starting service",
		"command", argv,
		"listen", cfg.ListenAddr(),
		"ollama", cfg.OllamaURL,
		"forge", joinHostPort(cfg.ForgeHost, cfg.ForgePort),
		"storage", cfg.StoragePath,
	)

	return l.exec(path, argv, mergeEnv(os.Environ(), cfg.Environ()))
}

// Returns base with every variable in overrides replaced or added.
func mergeEnv(base, overrides []string) []string {
	set := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		k, _, _ := strings.Cut(kv, "=")
		set[k] = struct{}{}
	}

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := set[k]; !ok {
			env = append(env, kv)
		}
	}
	return append(env, overrides...)
}

// Verifies dir is a directory the current identity can create files in.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, ".forgepack-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
