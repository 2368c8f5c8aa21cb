// Package registry authenticates to container registries and publishes
// built images.
//
// Credentials are resolved per registry in order: the REGISTRY_USERNAME and
// REGISTRY_PASSWORD environment variables, the Docker credential store
// (config.json and credential helpers), then an interactive prompt when a
// terminal is attached. Authentication is verified by checking push
// permission on every distinct repository before any build work starts.
//
// Publishing reads the OCI image layout produced by a build and pushes it
// under a single tag. Each tag is pushed independently, so a caller can
// record per-tag outcomes.
//
// Example usage:
//
//	auth := registry.NewAuthenticator()
//	kc, err := auth.Authenticate(ctx, tags)
//	if err != nil {
//	    return err
//	}
//
//	pub := registry.NewPublisher()
//	for _, tag := range tags {
//	    d, err := pub.Publish(ctx, kc, layoutDir, tag)
//	    ...
//	}
package registry
