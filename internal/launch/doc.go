// Package launch implements the runtime configuration contract of the
// packaged service.
//
// The service is configured only through environment variables. Every
// variable has a documented default, and a missing or blank value falls
// back to it. [Resolve] turns an environment into a validated [Config],
// rejecting out-of-range ports and malformed URLs. Downstream hosts are
// never contacted here; an unreachable backend is a health problem of the
// running service, not a startup error.
//
// [Launch] is the image entrypoint. It refuses to run as root, checks that
// the storage path is writable, then replaces itself with the service
// process so configuration errors surface before the liveness endpoint is
// ever reachable. [Probe] is the other half of the health contract: it
// polls GET /health on the configured listen address.
//
// Example usage:
//
//	cfg, err := launch.Load(".env")
//	if err != nil {
//	    return err
//	}
//	return launch.Launch(ctx, cfg, []string{"python", "main.py"})
package launch
