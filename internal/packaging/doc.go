// Package packaging renders the Dockerfile for the proxy image.
//
// One parameterised [Spec] describes the image: base image, system
// packages, Python requirements, runtime identity, storage path, health
// check and entrypoint. A small set of named profiles adjusts it. The
// minimal profile carries only what the service needs. The full-admin
// profile adds an interactive administration account whose password is
// supplied at build time through a BuildKit secret and never written into
// the Dockerfile or the image config. The service never runs as that
// account.
//
// The image embeds the forgepack binary itself, cross-compiled in a first
// stage, which serves as entrypoint (launch), health check (healthcheck)
// and ownership setup (ownership apply) inside the container.
//
// Rendered output is checked with BuildKit's Dockerfile parser before it is
// returned.
//
// Example usage:
//
//	spec := packaging.ForProfile(descriptor.ProfileMinimal)
//	data, err := spec.Render()
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("Dockerfile", data, 0644)
package packaging
