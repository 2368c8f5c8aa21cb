// Package identity maps the image's runtime user onto the ownership the
// deployment host expects for mounted paths.
//
// The host is a NAS-style appliance whose shares belong to a fixed uid/gid
// pair (1026:100 by default). A [Mapping] names the non-privileged user the
// service runs as, the owner expected on the host, and the paths that must
// carry that ownership. [Apply] runs once while the image is built: it
// verifies every owned path exists, creates the runtime group and user when
// absent, and hands the paths over to the owner. It never creates a missing
// path.
//
// Example usage:
//
//	m := identity.Default()
//	m.OwnedPaths = []string{"/app/data"}
//	if err := identity.Apply(ctx, m); err != nil {
//	    return err
//	}
package identity
