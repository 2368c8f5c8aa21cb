// Parses flags and dispatches forgepack commands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//
// Commands:
//
//	build (default)          Build a target and publish it.
//	builder ensure <plat>    Create or reuse a builder for a platform.
//	builder ls               List known builders.
//	render                   Render the image Dockerfile for a profile.
//	launch -- <cmd>          Start the service inside the image.
//	healthcheck              Probe the service liveness endpoint.
//	ownership apply          Set up the runtime user and path ownership.
//	version                  Show version information.
//
// Build flags are bound to FORGEPACK_* environment variables so CI can
// override the descriptor without editing it. Flags override build-time
// defaults set via linker flags. After parsing, the global logger is
// reconfigured to reflect the final level and verbosity before the command
// runs.
package cli
