// Package build runs a Dockerfile build on a BuildKit builder.
//
// A build solves the target's Dockerfile with the dockerfile.v0 frontend for
// every requested platform in a single request. Image names, labels, build
// arguments and secrets are passed as frontend attributes and session
// attachables. The result is exported as an OCI image layout directory, one
// index covering all platforms, which the registry and runtime packages
// consume afterwards.
//
// Progress reported by BuildKit is drained concurrently and logged through
// the default logger. A build succeeds or fails as a whole; partial platform
// results are never reported.
//
// Example usage:
//
//	result, err := build.NewEngine().Build(ctx, build.Options{
//	    Address:   "docker-container://buildx_buildkit_forgepack-linux-arm-v70",
//	    Context:   "/src/translator",
//	    BuildFile: "/src/translator/Dockerfile",
//	    Platforms: []string{"linux/arm/v7"},
//	    Tags:      []string{"registry.example.com/acme/translator:1.0"},
//	    Output:    "/home/user/.cache/forgepack/builds/translator/run",
//	})
//	if err != nil {
//	    return err
//	}
package build
