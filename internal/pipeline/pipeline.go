package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cruciblehq/forgepack/internal/build"
	"github.com/cruciblehq/forgepack/internal/builder"
	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/packaging"
	"github.com/cruciblehq/forgepack/internal/paths"
	"github.com/cruciblehq/forgepack/internal/registry"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Subdirectory of the run directory receiving the OCI layout.
	layoutDir = "oci"

	// Name of the Dockerfile rendered into the run directory.
	renderedBuildFile = "Dockerfile"
)

// Resolves registry credentials and verifies push access for tags.
type Authenticator interface {
	Authenticate(ctx context.Context, tags []string) (authn.Keychain, error)
}

// Provides a builder able to target a platform.
type BuilderEnsurer interface {
	Ensure(ctx context.Context, platform string) (*builder.Instance, error)
}

// Runs a build on a builder.
type Engine interface {
	Build(ctx context.Context, opts build.Options) (*build.Result, error)
}

// Pushes a built image under one tag.
type Publisher interface {
	Publish(ctx context.Context, kc authn.Keychain, dir, tag string) (digest.Digest, error)
}

// Imports a locally built image into a container runtime.
type Importer interface {
	Import(ctx context.Context, dir string, tags, built []string) error
}

// Collaborators of a [Pipeline].
type Options struct {
	Authenticator Authenticator                            // Required for registry-push targets.
	Builders      BuilderEnsurer                           // Ensures builders per platform.
	Engine        Engine                                   // Runs the build.
	Publisher     Publisher                                // Required for registry-push targets.
	Importer      Importer                                 // Optional; imports local output.
	Metrics       *Metrics                                 // Optional; records run metrics.
	Lookup        func(string) (string, bool)              // Environment lookup for secrets; nil reads the process environment.
	OutputDir     func(target, run string) string          // Run directory; defaults to the cache.
	Render        func(descriptor.Profile) ([]byte, error) // Renders the Dockerfile of a profile; defaults to the packaging spec.
	Now           func() time.Time                         // Clock for dynamic labels.
	NewRunID      func() string                            // Run identifier source.
}

// Builds targets and publishes their images.
type Pipeline struct {
	opts Options
}

// Creates a [Pipeline] from opts, filling in defaults.
func New(opts Options) *Pipeline {
	if opts.OutputDir == nil {
		opts.OutputDir = paths.Build
	}
	if opts.Render == nil {
		opts.Render = renderProfile
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Pipeline{opts: opts}
}

// Runs every step for target and reports the outcome.
//
// The target is validated before any collaborator is called. The returned
// result is never nil, even on failure, so callers can always report it.
func (p *Pipeline) Run(ctx context.Context, target *descriptor.Target) (*Result, error) {
	r := newResult(p.opts.NewRunID(), target.Name, target.Platforms)
	log := slog.With("run", r.RunID, "target", target.Name)

	err := p.run(ctx, log, target, r)
	if p.opts.Metrics != nil {
		p.opts.Metrics.Observe(r)
	}

	if err != nil {
		log.Error("run failed", "error", err)
		return r, err
	}

	log.Info("run succeeded", "platforms", r.Platforms, "published", len(r.Published))
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, target *descriptor.Target, r *Result) error {
	var (
		secrets map[string][]byte
		render  bool
	)
	err := p.step(ctx, log, r, StepValidate, func(ctx context.Context) error {
		var err error
		secrets, render, err = p.validate(target)
		return kind(err, descriptor.ErrDescriptorInvalid)
	})
	if err != nil {
		return err
	}
	r.Profile = target.Profile

	var kc authn.Keychain
	if target.Pushes() {
		err := p.step(ctx, log, r, StepAuthenticate, func(ctx context.Context) error {
			var err error
			kc, err = p.opts.Authenticator.Authenticate(ctx, target.UniqueTags())
			return kind(err, registry.ErrAuthenticationFailed)
		})
		if err != nil {
			return err
		}
	}

	var inst *builder.Instance
	err = p.step(ctx, log, r, StepEnsureBuilder, func(ctx context.Context) error {
		var err error
		inst, err = p.ensureBuilders(ctx, target.Platforms)
		return kind(err, builder.ErrBuilderUnavailable)
	})
	if err != nil {
		return err
	}
	r.Builder = inst.Name

	err = p.step(ctx, log, r, StepBuild, func(ctx context.Context) error {
		dir := p.opts.OutputDir(target.Name, r.RunID)

		buildFile := target.BuildFile
		if render {
			var err error
			if buildFile, err = p.renderBuildFile(target.Profile, dir); err != nil {
				return kind(err, build.ErrBuildFailed)
			}
			r.Rendered = true
			log.Info("dockerfile rendered from profile", "profile", target.Profile, "path", buildFile)
		}

		res, err := p.opts.Engine.Build(ctx, build.Options{
			Address:   inst.Address,
			Context:   target.Context,
			BuildFile: buildFile,
			Platforms: target.Platforms,
			Tags:      target.UniqueTags(),
			Labels:    target.ResolveLabels(p.opts.Now()),
			Args:      target.Args,
			Secrets:   secrets,
			Output:    filepath.Join(dir, layoutDir),
		})
		if err != nil {
			return kind(err, build.ErrBuildFailed)
		}
		r.Output = res.Output
		r.Digest = res.Digest
		return nil
	})
	if err != nil {
		return err
	}

	return p.step(ctx, log, r, StepPublish, func(ctx context.Context) error {
		if target.Pushes() {
			return p.publish(ctx, log, kc, target, r)
		}
		return p.importLocal(ctx, target, r)
	})
}

// Checks the target and resolves its secrets before anything is contacted.
//
// Reports whether the Dockerfile must be rendered from the target's profile,
// which happens when the target's Dockerfile does not exist. A rendered
// full-admin image needs the administration password secret.
func (p *Pipeline) validate(target *descriptor.Target) (map[string][]byte, bool, error) {
	if err := target.Validate(); err != nil {
		return nil, false, err
	}

	secrets, err := target.ResolveSecrets(p.opts.Lookup)
	if err != nil {
		return nil, false, err
	}

	if target.Pushes() && (p.opts.Authenticator == nil || p.opts.Publisher == nil) {
		return nil, false, fmt.Errorf("%w: target %q pushes but no registry client is configured", descriptor.ErrDescriptorInvalid, target.Name)
	}

	render := false
	if _, err := os.Stat(target.BuildFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: target %q: dockerfile: %w", descriptor.ErrDescriptorInvalid, target.Name, err)
		}
		render = true
	}

	if render && target.Profile == descriptor.ProfileFullAdmin {
		if _, ok := secrets[packaging.AdminPasswordSecret]; !ok {
			return nil, false, fmt.Errorf("%w: target %q: profile %s needs secret %q", descriptor.ErrDescriptorInvalid, target.Name, target.Profile, packaging.AdminPasswordSecret)
		}
	}

	return secrets, render, nil
}

// Writes the Dockerfile of profile into dir and returns its path.
func (p *Pipeline) renderBuildFile(profile descriptor.Profile, dir string) (string, error) {
	data, err := p.opts.Render(profile)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return "", err
	}

	path := filepath.Join(dir, renderedBuildFile)
	if err := os.WriteFile(path, data, paths.DefaultFileMode); err != nil {
		return "", err
	}
	return path, nil
}

// Renders the Dockerfile of the packaging spec for profile.
func renderProfile(profile descriptor.Profile) ([]byte, error) {
	return packaging.ForProfile(profile).Render()
}

// Ensures a builder for each platform in order and returns the builder
// selected last, which must be able to target every platform.
func (p *Pipeline) ensureBuilders(ctx context.Context, platforms []string) (*builder.Instance, error) {
	var inst *builder.Instance
	for _, platform := range platforms {
		var err error
		inst, err = p.opts.Builders.Ensure(ctx, platform)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", platform, err)
		}
	}

	parsed := make([]ocispec.Platform, 0, len(platforms))
	for _, platform := range platforms {
		_, ps, err := descriptor.ParsePlatform(platform)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, ps)
	}
	if !inst.SupportsAll(parsed) {
		return nil, fmt.Errorf("%w: builder %s cannot target all of %v", builder.ErrBuilderUnavailable, inst.Name, platforms)
	}
	return inst, nil
}

// Pushes every distinct tag, recording each outcome.
func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, kc authn.Keychain, target *descriptor.Target, r *Result) error {
	var merr *multierror.Error
	for _, tag := range target.UniqueTags() {
		d, err := p.opts.Publisher.Publish(ctx, kc, r.Output, tag)
		if err != nil {
			log.Warn("tag failed to publish", "tag", tag, "error", err)
			r.Failed[tag] = err
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", tag, err))
			continue
		}
		r.Published[tag] = d
	}

	if err := merr.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %d of %d: %w", ErrPublishPartialFailure, len(r.Failed), len(r.Failed)+len(r.Published), err)
	}
	return nil
}

// Leaves the layout in the cache and imports it when an importer is set.
func (p *Pipeline) importLocal(ctx context.Context, target *descriptor.Target, r *Result) error {
	if p.opts.Importer == nil {
		return nil
	}
	if err := p.opts.Importer.Import(ctx, r.Output, target.UniqueTags(), target.Platforms); err != nil {
		return err
	}
	r.Imported = true
	return nil
}

// Runs fn as step s, recording its status and duration. The returned error
// names the step.
func (p *Pipeline) step(ctx context.Context, log *slog.Logger, r *Result, s Step, fn func(context.Context) error) error {
	sr := r.Step(s)
	log.Debug("step started", "step", s)

	start := time.Now()
	err := fn(ctx)
	sr.Duration = time.Since(start)

	if err != nil {
		sr.Status = StatusFailed
		sr.Err = err
		return fmt.Errorf("%s: %w", s, err)
	}

	sr.Status = StatusSucceeded
	log.Info("step succeeded", "step", s, "duration", sr.Duration)
	return nil
}

// Wraps err with sentinel unless it already matches it.
func kind(err, sentinel error) error {
	if err == nil || errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
