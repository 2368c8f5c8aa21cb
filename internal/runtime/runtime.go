package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"slices"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/defaults"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manages the containerd client used to import local build artifacts.
type Runtime struct {
	client *containerd.Client // Containerd client for the image store.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(address, namespace string) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return &Runtime{client: client}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Imports the OCI layout at dir and records it under every tag.
//
// Without tags the image is recorded under a name derived from dir. When
// the host platform is among built, its layers are unpacked into the
// default snapshotter.
func (rt *Runtime) Import(ctx context.Context, dir string, tags, built []string) error {
	target, names, err := rt.importLayout(ctx, dir)
	if err != nil {
		return fmt.Errorf("%w: import %s: %w", ErrRuntime, dir, err)
	}

	if len(tags) == 0 {
		tags = []string{imageTag(dir)}
	}

	for _, tag := range tags {
		if err := rt.tagImage(ctx, target, tag); err != nil {
			return fmt.Errorf("%w: tag %s: %w", ErrRuntime, tag, err)
		}
		slog.Debug("image imported", "tag", tag, "digest", target.Digest)
	}

	rt.removeStale(ctx, names, tags)

	if !includesHost(built) {
		slog.Info("image imported without unpacking, host platform not built", "platforms", built)
		return nil
	}

	if err := rt.unpackImage(ctx, tags[0]); err != nil {
		return fmt.Errorf("%w: unpack %s: %w", ErrRuntime, tags[0], err)
	}
	return nil
}

// Streams the layout to containerd and returns the imported image target
// along with the names of the records the import created.
//
// BuildKit records one index entry per image name, all pointing to the same
// image. Entries that point to different targets are rejected.
func (rt *Runtime) importLayout(ctx context.Context, dir string) (ocispec.Descriptor, []string, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeLayoutTar(pw, dir))
	}()
	defer pr.Close()

	imported, err := rt.client.Import(ctx, pr, containerd.WithAllPlatforms(true))
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}

	target, err := commonTarget(imported)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}

	names := make([]string, 0, len(imported))
	for _, img := range imported {
		names = append(names, img.Name)
	}
	return target, names, nil
}

// Deletes import records whose names are not among tags.
//
// Runs after tagging so the content stays referenced throughout.
func (rt *Runtime) removeStale(ctx context.Context, names, tags []string) {
	is := rt.client.ImageService()
	for _, n := range names {
		if slices.Contains(tags, n) {
			continue
		}
		if err := is.Delete(ctx, n); err != nil && !errdefs.IsNotFound(err) {
			slog.Warn("failed to remove import record", "image", n, "error", err)
		}
	}
}

// Creates or updates the image record tag pointing to target.
func (rt *Runtime) tagImage(ctx context.Context, target ocispec.Descriptor, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}
	return nil
}

// Unpacks the host platform's layers of a tagged image into the snapshotter.
func (rt *Runtime) unpackImage(ctx context.Context, tag string) error {
	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return err
	}

	image := containerd.NewImageWithPlatform(rt.client, img, platforms.Only(platforms.DefaultSpec()))
	return image.Unpack(ctx, defaults.DefaultSnapshotter)
}

// Returns the single target shared by every imported record.
func commonTarget(imported []images.Image) (ocispec.Descriptor, error) {
	if len(imported) == 0 {
		return ocispec.Descriptor{}, ErrEmptyArchive
	}

	target := imported[0].Target
	for _, img := range imported[1:] {
		if img.Target.Digest != target.Digest {
			return ocispec.Descriptor{}, ErrMultipleImages
		}
	}
	return target, nil
}

// Returns true if any of the built platforms can run on the host.
func includesHost(built []string) bool {
	host := platforms.Default()
	for _, raw := range built {
		p, err := platforms.Parse(raw)
		if err != nil {
			continue
		}
		if host.Match(p) {
			return true
		}
	}
	return false
}

// Produces a containerd image tag from a layout path.
//
// The path is hashed to produce a tag that is always valid for OCI references
// regardless of which characters the path contains.
func imageTag(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("import/%s:latest", hex.EncodeToString(h[:]))
}
