package descriptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTarget() *Target {
	return &Target{
		Name:      "translator",
		Context:   ".",
		BuildFile: "Dockerfile",
		Platforms: []string{"arm/v7"},
		Tags:      []string{"registry.io/ns/img:v1"},
		Output:    OutputRegistryPush,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Target)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Target) {}},
		{name: "empty platforms", mutate: func(t *Target) { t.Platforms = nil }, wantErr: true},
		{name: "bad platform", mutate: func(t *Target) { t.Platforms = []string{"linux/*"} }, wantErr: true},
		{name: "push without tags", mutate: func(t *Target) { t.Tags = nil }, wantErr: true},
		{name: "local without tags", mutate: func(t *Target) { t.Tags = nil; t.Output = OutputLocal }},
		{name: "unknown output", mutate: func(t *Target) { t.Output = "s3" }, wantErr: true},
		{name: "unknown profile", mutate: func(t *Target) { t.Profile = "huge" }, wantErr: true},
		{name: "duplicate tags allowed", mutate: func(t *Target) { t.Tags = append(t.Tags, t.Tags[0]) }},
		{name: "malformed tag", mutate: func(t *Target) { t.Tags = []string{"not a tag"} }, wantErr: true},
		{name: "empty secret env", mutate: func(t *Target) { t.Secrets = map[string]string{"admin_password": ""} }, wantErr: true},
		{name: "no name", mutate: func(t *Target) { t.Name = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := validTarget()
			tt.mutate(target)
			err := target.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrDescriptorInvalid), "error %v does not wrap ErrDescriptorInvalid", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateNormalizesPlatforms(t *testing.T) {
	target := validTarget()
	target.Platforms = []string{"arm/v7", "linux/arm/v7", "linux/arm64", "amd64"}

	require.NoError(t, target.Validate())
	assert.Equal(t, []string{"linux/arm/v7", "linux/arm64", "linux/amd64"}, target.Platforms)
}

func TestValidateDefaultsProfile(t *testing.T) {
	target := validTarget()
	target.Profile = ""

	require.NoError(t, target.Validate())
	assert.Equal(t, ProfileMinimal, target.Profile)
}

func TestValidateTag(t *testing.T) {
	tests := []struct {
		tag     string
		wantErr bool
	}{
		{tag: "registry.io/ns/img:v1"},
		{tag: "localhost:5000/ns/img:latest"},
		{tag: "ghcr.io/org/team/img:1.2.3"},
		{tag: "ns/img:v1", wantErr: true},
		{tag: "img:v1", wantErr: true},
		{tag: "registry.io/img:v1", wantErr: true},
		{tag: "registry.io/ns/img", wantErr: true},
		{tag: "registry.io/ns/img:v1@sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", wantErr: true},
		{tag: "Registry.io/NS/img:v1", wantErr: true},
		{tag: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			err := ValidateTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		arch    string
		variant string
		wantErr bool
	}{
		{in: "arm/v7", want: "linux/arm/v7", arch: "arm", variant: "v7"},
		{in: "linux/arm/v7", want: "linux/arm/v7", arch: "arm", variant: "v7"},
		{in: "linux/amd64", want: "linux/amd64", arch: "amd64"},
		{in: "arm64", want: "linux/arm64", arch: "arm64"},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, p, err := ParsePlatform(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "linux", p.OS)
			assert.Equal(t, tt.arch, p.Architecture)
			assert.Equal(t, tt.variant, p.Variant)
		})
	}
}
