package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDescriptor = `
default: translator
targets:
  translator:
    context: app
    platforms: [arm/v7]
    tags:
      - registry.io/ns/img:v1
    output: registry-push
    labels:
      org.opencontainers.image.title: translate-proxy
  admin:
    platforms: [linux/arm/v7, linux/arm64]
    profile: full-admin
    secrets:
      admin_password: ADMIN_PASSWORD
`

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndSelectDefault(t *testing.T) {
	path := writeDescriptor(t, sampleDescriptor)

	f, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "translator"}, f.Names())

	target, err := f.Select("", Overrides{})
	require.NoError(t, err)

	root := filepath.Dir(path)
	assert.Equal(t, "translator", target.Name)
	assert.Equal(t, filepath.Join(root, "app"), target.Context)
	assert.Equal(t, filepath.Join(root, "app", "Dockerfile"), target.BuildFile)
	assert.Equal(t, []string{"linux/arm/v7"}, target.Platforms)
	assert.Equal(t, OutputRegistryPush, target.Output)
	assert.Equal(t, ProfileMinimal, target.Profile)
	assert.Equal(t, TimestampValue, target.Labels[ocispec.AnnotationCreated])
}

func TestSelectDoesNotMutateFile(t *testing.T) {
	f, err := Parse([]byte(sampleDescriptor), t.TempDir())
	require.NoError(t, err)

	_, err = f.Select("translator", Overrides{Tags: []string{"registry.io/ns/img:v2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"registry.io/ns/img:v1"}, f.Targets["translator"].Tags)
	assert.Equal(t, []string{"arm/v7"}, f.Targets["translator"].Platforms)
}

func TestSelectOverrides(t *testing.T) {
	f, err := Parse([]byte(sampleDescriptor), t.TempDir())
	require.NoError(t, err)

	target, err := f.Select("admin", Overrides{
		Platforms: []string{" arm64 ", ""},
		Tags:      []string{"registry.io/ns/admin:v1"},
		Output:    OutputRegistryPush,
		Labels:    map[string]string{"com.example.team": "imaging"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"linux/arm64"}, target.Platforms)
	assert.Equal(t, []string{"registry.io/ns/admin:v1"}, target.Tags)
	assert.Equal(t, ProfileFullAdmin, target.Profile)
	assert.Equal(t, "imaging", target.Labels["com.example.team"])
}

func TestSelectPushWithoutTags(t *testing.T) {
	f, err := Parse([]byte(sampleDescriptor), t.TempDir())
	require.NoError(t, err)

	_, err = f.Select("admin", Overrides{Output: OutputRegistryPush})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDescriptorInvalid))
}

func TestSelectUnknownTarget(t *testing.T) {
	f, err := Parse([]byte(sampleDescriptor), t.TempDir())
	require.NoError(t, err)

	_, err = f.Select("missing", Overrides{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetNotFound))
	assert.True(t, errors.Is(err, ErrDescriptorInvalid))
}

func TestSelectConfinesContext(t *testing.T) {
	root := t.TempDir()
	f, err := Parse([]byte(`
targets:
  escape:
    context: ../../etc
    platforms: [arm/v7]
`), root)
	require.NoError(t, err)

	target, err := f.Select("", Overrides{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target.Context, root), "context %q escaped %q", target.Context, root)
}

func TestSelectAbsolutePaths(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	require.NoError(t, os.MkdirAll(app, 0o755))

	f, err := Parse([]byte("targets:\n  proxy:\n    platforms: [arm/v7]\n"), root)
	require.NoError(t, err)

	target, err := f.Select("", Overrides{Context: app, BuildFile: filepath.Join(app, "Dockerfile.admin")})
	require.NoError(t, err)
	assert.Equal(t, app, target.Context)
	assert.Equal(t, filepath.Join(app, "Dockerfile.admin"), target.BuildFile)

	tests := []struct {
		name string
		o    Overrides
	}{
		{name: "context outside root", o: Overrides{Context: "/srv/proj"}},
		{name: "sibling of root", o: Overrides{Context: root + "-other"}},
		{name: "dockerfile outside context", o: Overrides{Context: app, BuildFile: filepath.Join(root, "Dockerfile")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Select("", tt.o)
			assert.ErrorIs(t, err, ErrDescriptorInvalid)
			assert.ErrorContains(t, err, "outside")
		})
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse([]byte("targets: {}\n"), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDescriptorInvalid))

	_, err = Parse([]byte("targets: [\n"), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDescriptorInvalid))
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(path, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDescriptorInvalid))

	f, err := Load(path, true)
	require.NoError(t, err)

	target, err := f.Select("", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetName, target.Name)
	assert.Equal(t, []string{DefaultPlatform}, target.Platforms)
	assert.Equal(t, OutputLocal, target.Output)
}

func TestResolveLabels(t *testing.T) {
	target := Default()
	target.Labels["static"] = "value"

	now := time.Date(2026, 10, 19, 8, 30, 0, 0, time.FixedZone("JST", 9*3600))
	labels := target.ResolveLabels(now)

	assert.Equal(t, "2026-10-18T23:30:00Z", labels[ocispec.AnnotationCreated])
	assert.Equal(t, "value", labels["static"])
	assert.Equal(t, TimestampValue, target.Labels[ocispec.AnnotationCreated], "receiver must keep the placeholder")
}

func TestResolveLabelsRecordsProfile(t *testing.T) {
	target := Default()
	target.Profile = ProfileFullAdmin

	labels := target.ResolveLabels(time.Now())
	assert.Equal(t, string(ProfileFullAdmin), labels[ProfileLabel])
	assert.NotContains(t, target.Labels, ProfileLabel)

	target.Labels[ProfileLabel] = "custom"
	assert.Equal(t, "custom", target.ResolveLabels(time.Now())[ProfileLabel])
}

func TestUniqueTags(t *testing.T) {
	target := &Target{Tags: []string{"r.io/a/b:1", "r.io/a/b:2", "r.io/a/b:1"}}
	assert.Equal(t, []string{"r.io/a/b:1", "r.io/a/b:2"}, target.UniqueTags())
}

func TestResolveSecrets(t *testing.T) {
	target := &Target{Name: "admin", Secrets: map[string]string{"admin_password": "ADMIN_PASSWORD"}}

	env := map[string]string{"ADMIN_PASSWORD": "s3cret"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	secrets, err := target.ResolveSecrets(lookup)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), secrets["admin_password"])

	delete(env, "ADMIN_PASSWORD")
	_, err = target.ResolveSecrets(lookup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDescriptorInvalid))
}
