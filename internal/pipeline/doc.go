// Package pipeline builds a target and publishes the result.
//
// A run is a strict sequence of steps: validate the target and resolve its
// secrets, authenticate (registry-push targets only), ensure a builder for
// every platform, build all platforms in one solve, then publish every
// distinct tag or, for local targets, optionally import the image into
// containerd. A step only runs when every step before it succeeded. Steps
// that never ran are reported as not attempted.
//
// When the target's Dockerfile does not exist, the build step renders the
// Dockerfile of the target's packaging profile into the run directory and
// builds that. The profile is recorded on the image as a label either way.
//
// Each tag is pushed independently. Tags that were pushed stay published
// when a later tag fails; the run then fails with
// [ErrPublishPartialFailure] and the result lists which tags were
// published and which failed. Nothing is retried.
//
// Errors name the failing step and wrap the sentinel of the package that
// owns the step: descriptor.ErrDescriptorInvalid,
// registry.ErrAuthenticationFailed,
// builder.ErrBuilderUnavailable, build.ErrBuildFailed or
// [ErrPublishPartialFailure].
//
// Example usage:
//
//	p := pipeline.New(pipeline.Options{
//	    Authenticator: registry.NewAuthenticator(),
//	    Builders:      builder.NewManager(driver, store),
//	    Engine:        build.NewEngine(),
//	    Publisher:     registry.NewPublisher(),
//	})
//
//	result, err := p.Run(ctx, target)
//	pipeline.WriteSummary(os.Stdout, result)
package pipeline
