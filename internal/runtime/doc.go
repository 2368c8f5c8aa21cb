// Package runtime imports locally built images into containerd.
//
// A build with local output leaves an OCI image layout in the build cache.
// When a containerd address is configured, the layout is streamed to
// containerd as a tar archive, every requested tag is recorded in the image
// store, and the layers for the host platform are unpacked so the image can
// be run immediately with ctr or nerdctl. Images built only for foreign
// platforms are imported but not unpacked.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "default")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	err = rt.Import(ctx, "/home/user/.cache/forgepack/builds/translator/run",
//	    []string{"registry.example.com/acme/translator:1.0"},
//	    []string{"linux/arm/v7"})
package runtime
