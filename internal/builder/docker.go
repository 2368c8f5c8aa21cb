package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	bkclient "github.com/moby/buildkit/client"
	_ "github.com/moby/buildkit/client/connhelper/dockercontainer"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// BuildKit image run by docker-container builders. Matches the image
	// buildx uses, so builders created here are visible to "docker buildx ls".
	buildkitImage = "moby/buildkit:buildx-stable-1"

	// Container name prefix used by buildx for docker-container builders.
	containerPrefix = "buildx_buildkit_"

	// Label attached to builder containers created by forgepack.
	builderLabel = "com.cruciblehq.forgepack.builder"

	// Number of worker list attempts while BuildKit boots.
	bootAttempts = 20

	// Delay between worker list attempts.
	bootInterval = 500 * time.Millisecond
)

// Provisions BuildKit builders as privileged Docker containers.
type DockerContainerDriver struct {
	client client.APIClient // Docker Engine API client.
}

// Creates a [DockerContainerDriver] using the given Docker API client.
func NewDockerContainerDriver(cli client.APIClient) *DockerContainerDriver {
	return &DockerContainerDriver{client: cli}
}

// Creates a [DockerContainerDriver] configured from the DOCKER_* environment
// variables.
func NewDockerContainerDriverFromEnv() (*DockerContainerDriver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerContainerDriver{client: cli}, nil
}

// Returns "docker-container".
func (d *DockerContainerDriver) Name() string {
	return "docker-container"
}

// Returns the BuildKit address of the builder's container.
func (d *DockerContainerDriver) Address(name string) string {
	return "docker-container://" + containerName(name)
}

// Creates and starts the builder container.
//
// An existing running container is left alone and a stopped one is started,
// so repeated calls are no-ops. A concurrent creation of the same container
// is tolerated.
func (d *DockerContainerDriver) Create(ctx context.Context, name string) error {
	cname := containerName(name)

	info, err := d.client.ContainerInspect(ctx, cname)
	switch {
	case err == nil:
		if info.ContainerJSONBase != nil && info.State != nil && info.State.Running {
			slog.Debug("builder container already running", "container", cname)
			return nil
		}
		return d.start(ctx, cname)
	case !errdefs.IsNotFound(err):
		return err
	}

	if err := d.pull(ctx); err != nil {
		return err
	}

	_, err = d.client.ContainerCreate(ctx,
		&container.Config{
			Image:  buildkitImage,
			Labels: map[string]string{builderLabel: name},
		},
		&container.HostConfig{
			Privileged: true,
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
		},
		nil, // networking config
		nil, // platform
		cname,
	)
	if err != nil && !errdefs.IsConflict(err) && !errdefs.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create builder container %s: %w", cname, err)
	}

	slog.Info("builder container created", "container", cname, "image", buildkitImage)
	return d.start(ctx, cname)
}

// Returns the platforms reported by the builder's BuildKit workers.
//
// BuildKit takes a moment to accept connections after its container starts,
// so the worker list is retried a bounded number of times.
func (d *DockerContainerDriver) Platforms(ctx context.Context, name string) ([]ocispec.Platform, error) {
	var lastErr error
	for attempt := 0; attempt < bootAttempts; attempt++ {
		ps, err := d.listPlatforms(ctx, name)
		if err == nil {
			return ps, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bootInterval):
		}
	}
	return nil, fmt.Errorf("builder %s did not become ready: %w", name, lastErr)
}

// Connects to the builder and collects its worker platforms.
func (d *DockerContainerDriver) listPlatforms(ctx context.Context, name string) ([]ocispec.Platform, error) {
	c, err := bkclient.New(ctx, d.Address(name))
	if err != nil {
		return nil, err
	}
	defer c.Close()

	workers, err := c.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}

	var ps []ocispec.Platform
	for _, w := range workers {
		ps = append(ps, w.Platforms...)
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("builder %s reported no platforms", name)
	}
	return ps, nil
}

// Starts the container, treating an already running container as success.
func (d *DockerContainerDriver) start(ctx context.Context, cname string) error {
	if err := d.client.ContainerStart(ctx, cname, container.StartOptions{}); err != nil && !errdefs.IsNotModified(err) {
		return fmt.Errorf("failed to start builder container %s: %w", cname, err)
	}
	return nil
}

// Pulls the BuildKit image, draining the progress stream.
func (d *DockerContainerDriver) pull(ctx context.Context) error {
	slog.Info("pulling builder image", "image", buildkitImage)

	r, err := d.client.ImagePull(ctx, buildkitImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %q: %w", buildkitImage, err)
	}
	defer r.Close()

	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("error reading image pull output: %w", err)
	}
	return nil
}

// Returns the container name buildx uses for the first node of a builder.
func containerName(name string) string {
	return containerPrefix + name + "0"
}
