// Package builder manages reusable build executors.
//
// A [Manager] guarantees that a builder able to target a requested platform
// exists and is selected before a build runs. Builders are created once and
// reused by every later build; the manager never removes them and creating a
// builder that already exists is a no-op. The set of known builders and the
// selected one are persisted in a YAML state file so separate invocations
// share them.
//
// Provisioning is delegated to a [Driver]. The [DockerContainerDriver] runs
// BuildKit inside a privileged container managed through the Docker Engine
// API and reads the builder's platforms from BuildKit's worker list, so a
// platform is only reported as supported when the host can actually emulate
// it (binfmt_misc/QEMU for foreign architectures).
//
// The manager holds no locks. Callers must not run concurrent builds against
// the same builder name.
//
// Example usage:
//
//	driver, err := builder.NewDockerContainerDriverFromEnv()
//	if err != nil {
//	    return err
//	}
//	mgr := builder.NewManager(driver, builder.NewFileStore(paths.Builders()))
//
//	inst, err := mgr.Ensure(ctx, "linux/arm/v7")
//	if err != nil {
//	    return err // wraps builder.ErrBuilderUnavailable
//	}
package builder
