package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cruciblehq/forgepack/internal"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/opencontainers/go-digest"
)

// Pushes OCI image layouts to registries.
type Publisher struct {
	userAgent string          // Sent with every registry request.
	options   []remote.Option // Extra transport options.
}

// Creates a [Publisher] identifying itself with the program's user agent.
func NewPublisher(opts ...remote.Option) *Publisher {
	return &Publisher{
		userAgent: internal.UserAgent(),
		options:   opts,
	}
}

// Pushes the image in the layout at dir under tag and returns its digest.
//
// Multi-platform builds are pushed as an image index, single images as a
// manifest. Failures wrap [ErrPublishFailed], or [ErrLayoutInvalid] when
// the layout cannot be read.
func (p *Publisher) Publish(ctx context.Context, kc authn.Keychain, dir, tag string) (digest.Digest, error) {
	ref, err := name.NewTag(tag)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPublishFailed, tag, err)
	}

	idx, err := layout.ImageIndexFromPath(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLayoutInvalid, dir, err)
	}

	desc, err := rootDescriptor(idx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLayoutInvalid, dir, err)
	}

	opts := append([]remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(kc),
		remote.WithUserAgent(p.userAgent),
	}, p.options...)

	switch {
	case desc.MediaType.IsIndex():
		child, err := idx.ImageIndex(desc.Digest)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrLayoutInvalid, dir, err)
		}
		err = remote.WriteIndex(ref, child, opts...)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrPublishFailed, tag, err)
		}
	case desc.MediaType.IsImage():
		img, err := idx.Image(desc.Digest)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrLayoutInvalid, dir, err)
		}
		err = remote.Write(ref, img, opts...)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrPublishFailed, tag, err)
		}
	default:
		return "", fmt.Errorf("%w: unsupported media type %s", ErrLayoutInvalid, desc.MediaType)
	}

	d := digest.Digest(desc.Digest.String())
	slog.Info("tag published", "tag", tag, "digest", d)
	return d, nil
}

// Returns the image described by the layout's index.json.
//
// BuildKit writes one entry per image name; all of them must reference the
// same image.
func rootDescriptor(idx v1.ImageIndex) (v1.Descriptor, error) {
	m, err := idx.IndexManifest()
	if err != nil {
		return v1.Descriptor{}, err
	}
	if len(m.Manifests) == 0 {
		return v1.Descriptor{}, fmt.Errorf("layout has no images")
	}

	root := m.Manifests[0]
	for _, desc := range m.Manifests[1:] {
		if desc.Digest != root.Digest {
			return v1.Descriptor{}, fmt.Errorf("layout holds more than one image")
		}
	}
	return root, nil
}
