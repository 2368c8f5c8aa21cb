package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/containerd/platforms"
	"github.com/cruciblehq/forgepack/internal/build"
	"github.com/cruciblehq/forgepack/internal/builder"
	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/packaging"
	"github.com/cruciblehq/forgepack/internal/registry"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/opencontainers/go-digest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tag1 = "registry.example.com/acme/translator:1.0"
	tag2 = "registry.example.com/acme/translator:latest"

	imageDigest = digest.Digest("sha256:6c3c624b58dbbcd3c0dd82b4c53f04194d1247c6eebdaab7c610cf7d66709b3b")
)

// Records every collaborator call in order.
type recorder struct {
	calls []string
}

func (r *recorder) add(s string) {
	r.calls = append(r.calls, s)
}

type fakeAuth struct {
	rec *recorder
	err error
}

func (a *fakeAuth) Authenticate(ctx context.Context, tags []string) (authn.Keychain, error) {
	a.rec.add("authenticate")
	if a.err != nil {
		return nil, a.err
	}
	return authn.DefaultKeychain, nil
}

type fakeBuilders struct {
	rec       *recorder
	platforms []string
	err       error
}

func (b *fakeBuilders) Ensure(ctx context.Context, platform string) (*builder.Instance, error) {
	b.rec.add("ensure " + platform)
	if b.err != nil {
		return nil, b.err
	}
	return &builder.Instance{
		Name:      "forgepack-linux-arm-v7",
		Address:   "fake://forgepack-linux-arm-v7",
		Platforms: b.platforms,
	}, nil
}

type fakeEngine struct {
	rec  *recorder
	opts build.Options
	err  error
}

func (e *fakeEngine) Build(ctx context.Context, opts build.Options) (*build.Result, error) {
	e.rec.add("build")
	e.opts = opts
	if e.err != nil {
		return nil, e.err
	}
	return &build.Result{Output: opts.Output, Digest: imageDigest}, nil
}

type fakePublisher struct {
	rec  *recorder
	fail map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, kc authn.Keychain, dir, tag string) (digest.Digest, error) {
	p.rec.add("publish " + tag)
	if err := p.fail[tag]; err != nil {
		return "", err
	}
	return imageDigest, nil
}

type fakeImporter struct {
	rec  *recorder
	tags []string
}

func (i *fakeImporter) Import(ctx context.Context, dir string, tags, built []string) error {
	i.rec.add("import")
	i.tags = tags
	return nil
}

type fixture struct {
	rec       *recorder
	auth      *fakeAuth
	builders  *fakeBuilders
	engine    *fakeEngine
	publisher *fakePublisher
	importer  *fakeImporter
	metrics   *Metrics
	rendered  []descriptor.Profile
	pipeline  *Pipeline
}

func newFixture(t *testing.T) *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:       rec,
		auth:      &fakeAuth{rec: rec},
		builders:  &fakeBuilders{rec: rec, platforms: []string{"linux/arm/v7", "linux/arm64"}},
		engine:    &fakeEngine{rec: rec},
		publisher: &fakePublisher{rec: rec, fail: map[string]error{}},
		importer:  &fakeImporter{rec: rec},
		metrics:   NewMetrics(),
	}
	out := t.TempDir()
	f.pipeline = New(Options{
		Authenticator: f.auth,
		Builders:      f.builders,
		Engine:        f.engine,
		Publisher:     f.publisher,
		Importer:      f.importer,
		Metrics:       f.metrics,
		Lookup:        func(string) (string, bool) { return "", false },
		OutputDir:     func(target, run string) string { return filepath.Join(out, target, run) },
		Render:        f.render,
		Now:           func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) },
		NewRunID:      func() string { return "run-1" },
	})
	return f
}

func (f *fixture) render(p descriptor.Profile) ([]byte, error) {
	f.rendered = append(f.rendered, p)
	return []byte("FROM scratch\n"), nil
}

func pushTarget(tags ...string) *descriptor.Target {
	t := descriptor.Default()
	t.Output = descriptor.OutputRegistryPush
	t.Tags = tags
	return t
}

func TestRunLocalNeverAuthenticates(t *testing.T) {
	f := newFixture(t)

	r, err := f.pipeline.Run(context.Background(), descriptor.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"ensure linux/arm/v7", "build", "import"}, f.rec.calls)
	assert.Equal(t, StatusNotAttempted, r.Step(StepAuthenticate).Status)
	assert.Equal(t, StatusSucceeded, r.Step(StepBuild).Status)
	assert.Equal(t, StatusSucceeded, r.Step(StepPublish).Status)
	assert.True(t, r.Imported)
	assert.Empty(t, r.Published)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, imageDigest, r.Digest)
}

func TestRunLocalWithoutImporter(t *testing.T) {
	f := newFixture(t)
	f.pipeline.opts.Importer = nil

	r, err := f.pipeline.Run(context.Background(), descriptor.Default())
	require.NoError(t, err)
	assert.False(t, r.Imported)
	assert.True(t, r.Succeeded())
}

func TestRunPushWithoutTagsIsInvalid(t *testing.T) {
	f := newFixture(t)

	r, err := f.pipeline.Run(context.Background(), pushTarget())
	require.ErrorIs(t, err, descriptor.ErrDescriptorInvalid)

	assert.Empty(t, f.rec.calls)
	assert.Equal(t, StatusFailed, r.Step(StepValidate).Status)
	for _, sr := range r.Steps[1:] {
		assert.Equal(t, StatusNotAttempted, sr.Status, sr.Step)
	}
	assert.False(t, r.Succeeded())
}

func TestRunAuthenticationFailureStopsEverything(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.New("401 unauthorized")

	r, err := f.pipeline.Run(context.Background(), pushTarget(tag1))
	require.ErrorIs(t, err, registry.ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "authenticate")

	assert.Equal(t, []string{"authenticate"}, f.rec.calls)
	assert.Equal(t, StatusFailed, r.Step(StepAuthenticate).Status)
	assert.Equal(t, StatusNotAttempted, r.Step(StepEnsureBuilder).Status)
	assert.Equal(t, StatusNotAttempted, r.Step(StepBuild).Status)
	assert.Equal(t, StatusNotAttempted, r.Step(StepPublish).Status)
}

func TestRunBuilderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.builders.err = errors.New("no emulator for arm")

	r, err := f.pipeline.Run(context.Background(), pushTarget(tag1))
	require.ErrorIs(t, err, builder.ErrBuilderUnavailable)

	assert.Equal(t, []string{"authenticate", "ensure linux/arm/v7"}, f.rec.calls)
	assert.Equal(t, StatusFailed, r.Step(StepEnsureBuilder).Status)
	assert.Equal(t, StatusNotAttempted, r.Step(StepBuild).Status)
}

func TestRunSelectedBuilderMustCoverAllPlatforms(t *testing.T) {
	f := newFixture(t)
	f.builders.platforms = []string{"linux/arm64"}

	target := descriptor.Default()
	target.Platforms = []string{"linux/arm64", "linux/amd64"}

	_, err := f.pipeline.Run(context.Background(), target)
	require.ErrorIs(t, err, builder.ErrBuilderUnavailable)
	assert.NotContains(t, f.rec.calls, "build")
}

func TestRunBuildFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.err = errors.New("process did not complete successfully")

	r, err := f.pipeline.Run(context.Background(), pushTarget(tag1))
	require.ErrorIs(t, err, build.ErrBuildFailed)

	assert.Equal(t, StatusFailed, r.Step(StepBuild).Status)
	assert.Equal(t, StatusNotAttempted, r.Step(StepPublish).Status)
	assert.NotContains(t, f.rec.calls, "publish "+tag1)
}

func TestRunSingleTagPushFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.fail[tag1] = errors.New("connection reset")

	r, err := f.pipeline.Run(context.Background(), pushTarget(tag1))
	require.ErrorIs(t, err, ErrPublishPartialFailure)

	assert.Empty(t, r.Published)
	assert.Equal(t, []string{tag1}, r.FailedTags())
	assert.False(t, r.Succeeded())
}

func TestRunPartialPublish(t *testing.T) {
	f := newFixture(t)
	f.publisher.fail[tag2] = errors.New("quota exceeded")

	r, err := f.pipeline.Run(context.Background(), pushTarget(tag1, tag2))
	require.ErrorIs(t, err, ErrPublishPartialFailure)

	assert.Equal(t, []string{tag1}, r.PublishedTags())
	assert.Equal(t, []string{tag2}, r.FailedTags())
	assert.Equal(t, StatusFailed, r.Step(StepPublish).Status)
	assert.False(t, r.Succeeded())
}

func TestRunPublishesDistinctTags(t *testing.T) {
	f := newFixture(t)

	r, err := f.pipeline.Run(context.Background(), pushTarget(tag1, tag2, tag1))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"authenticate",
		"ensure linux/arm/v7",
		"build",
		"publish " + tag1,
		"publish " + tag2,
	}, f.rec.calls)
	assert.Equal(t, []string{tag1, tag2}, r.PublishedTags())
	assert.Equal(t, imageDigest, r.Published[tag1])
}

func TestRunResolvesDynamicLabelsAtBuild(t *testing.T) {
	f := newFixture(t)
	target := descriptor.Default()

	_, err := f.pipeline.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-19T08:30:00Z", f.engine.opts.Labels["org.opencontainers.image.created"])
	assert.Equal(t, descriptor.TimestampValue, target.Labels["org.opencontainers.image.created"])
	assert.Equal(t, "fake://forgepack-linux-arm-v7", f.engine.opts.Address)
	assert.True(t, strings.HasSuffix(f.engine.opts.Output, filepath.Join("translator", "run-1", layoutDir)))
}

func TestRunResolvesSecrets(t *testing.T) {
	f := newFixture(t)
	f.pipeline.opts.Lookup = func(k string) (string, bool) {
		if k == "ADMIN_PASSWORD" {
			return "hunter2", true
		}
		return "", false
	}

	target := descriptor.Default()
	target.Secrets = map[string]string{"admin_password": "ADMIN_PASSWORD"}

	_, err := f.pipeline.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), f.engine.opts.Secrets["admin_password"])
}

func TestRunMissingSecretIsInvalid(t *testing.T) {
	f := newFixture(t)
	target := descriptor.Default()
	target.Secrets = map[string]string{"admin_password": "ADMIN_PASSWORD"}

	r, err := f.pipeline.Run(context.Background(), target)
	require.ErrorIs(t, err, descriptor.ErrDescriptorInvalid)
	assert.Contains(t, err.Error(), string(StepValidate))
	assert.Empty(t, f.rec.calls)

	assert.False(t, r.Succeeded())
	assert.Equal(t, StatusFailed, r.Step(StepValidate).Status)
	assert.ErrorIs(t, r.Step(StepValidate).Err, descriptor.ErrDescriptorInvalid)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r))
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "ADMIN_PASSWORD")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("translator", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("translator", "succeeded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.last.WithLabelValues("translator")))
}

func TestRunRendersProfileWhenDockerfileMissing(t *testing.T) {
	f := newFixture(t)
	f.pipeline.opts.Lookup = func(k string) (string, bool) { return "hunter2", k == "ADMIN_PASSWORD" }

	target := descriptor.Default()
	target.BuildFile = filepath.Join(t.TempDir(), "Dockerfile")
	target.Profile = descriptor.ProfileFullAdmin
	target.Secrets = map[string]string{packaging.AdminPasswordSecret: "ADMIN_PASSWORD"}

	r, err := f.pipeline.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, []descriptor.Profile{descriptor.ProfileFullAdmin}, f.rendered)
	assert.True(t, r.Rendered)
	assert.Equal(t, descriptor.ProfileFullAdmin, r.Profile)
	assert.Equal(t, string(descriptor.ProfileFullAdmin), f.engine.opts.Labels[descriptor.ProfileLabel])

	require.Equal(t, filepath.Join(filepath.Dir(f.engine.opts.Output), renderedBuildFile), f.engine.opts.BuildFile)
	data, err := os.ReadFile(f.engine.opts.BuildFile)
	require.NoError(t, err)
	assert.Equal(t, "FROM scratch\n", string(data))

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r))
	assert.Contains(t, buf.String(), "full-admin (rendered)")
}

func TestRunUsesExistingDockerfile(t *testing.T) {
	f := newFixture(t)

	dockerfile := filepath.Join(t.TempDir(), "Dockerfile")
	require.NoError(t, os.WriteFile(dockerfile, []byte("FROM alpine\n"), 0o644))

	target := descriptor.Default()
	target.BuildFile = dockerfile

	r, err := f.pipeline.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Empty(t, f.rendered)
	assert.False(t, r.Rendered)
	assert.Equal(t, dockerfile, f.engine.opts.BuildFile)
	assert.Equal(t, string(descriptor.ProfileMinimal), f.engine.opts.Labels[descriptor.ProfileLabel])
}

func TestRunRenderedFullAdminNeedsAdminSecret(t *testing.T) {
	f := newFixture(t)

	target := descriptor.Default()
	target.BuildFile = filepath.Join(t.TempDir(), "Dockerfile")
	target.Profile = descriptor.ProfileFullAdmin

	r, err := f.pipeline.Run(context.Background(), target)
	require.ErrorIs(t, err, descriptor.ErrDescriptorInvalid)
	assert.Contains(t, err.Error(), packaging.AdminPasswordSecret)
	assert.Empty(t, f.rec.calls)
	assert.Empty(t, f.rendered)
	assert.Equal(t, StatusFailed, r.Step(StepValidate).Status)
}

func TestEnsureBuildersChecksEveryPlatform(t *testing.T) {
	f := newFixture(t)
	inst, err := f.pipeline.ensureBuilders(context.Background(), []string{"linux/arm/v7", "linux/arm64"})
	require.NoError(t, err)
	assert.True(t, inst.Supports(platforms.MustParse("linux/arm64")))
	assert.Equal(t, []string{"ensure linux/arm/v7", "ensure linux/arm64"}, f.rec.calls)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.publisher.fail[tag2] = errors.New("denied")

	_, err := f.pipeline.Run(context.Background(), pushTarget(tag1, tag2))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tags.WithLabelValues("translator", "published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.tags.WithLabelValues("translator", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("translator", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.last.WithLabelValues("translator")))

	path := filepath.Join(t.TempDir(), "forgepack.prom")
	require.NoError(t, f.metrics.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "forgepack_tag_publish_total")
}

func TestWriteSummary(t *testing.T) {
	f := newFixture(t)
	f.publisher.fail[tag2] = errors.New("quota exceeded")

	r, _ := f.pipeline.Run(context.Background(), pushTarget(tag1, tag2))

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "published")
	assert.Contains(t, out, tag1)
	assert.Contains(t, out, "quota exceeded")
	assert.Contains(t, out, string(StatusSucceeded))
}
