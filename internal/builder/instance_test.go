package builder

import (
	"testing"

	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestSupports(t *testing.T) {
	inst := &Instance{Platforms: []string{"linux/amd64", "linux/arm/v7"}}

	tests := []struct {
		platform string
		want     bool
	}{
		{"linux/amd64", true},
		{"linux/arm/v7", true},
		{"linux/arm/v6", true},
		{"linux/arm64", false},
		{"windows/amd64", false},
	}

	for _, tt := range tests {
		if got := inst.Supports(platforms.MustParse(tt.platform)); got != tt.want {
			t.Errorf("Supports(%s) = %v, want %v", tt.platform, got, tt.want)
		}
	}
}

func TestSupportsAll(t *testing.T) {
	inst := &Instance{Platforms: []string{"linux/arm/v7", "linux/arm64"}}

	both := []ocispec.Platform{platforms.MustParse("linux/arm/v7"), platforms.MustParse("linux/arm64")}
	if !inst.SupportsAll(both) {
		t.Fatal("SupportsAll = false, want true")
	}

	withAmd := append(both, platforms.MustParse("linux/amd64"))
	if inst.SupportsAll(withAmd) {
		t.Fatal("SupportsAll = true, want false")
	}
}

func TestFormatPlatformsDeduplicates(t *testing.T) {
	got := formatPlatforms([]ocispec.Platform{
		{OS: "linux", Architecture: "arm", Variant: "v7"},
		{OS: "linux", Architecture: "arm", Variant: "v7"},
		{OS: "linux", Architecture: "amd64"},
	})
	if len(got) != 2 || got[0] != "linux/arm/v7" || got[1] != "linux/amd64" {
		t.Fatalf("formatPlatforms = %v, want [linux/arm/v7 linux/amd64]", got)
	}
}

func TestContainerName(t *testing.T) {
	d := &DockerContainerDriver{}
	if got := containerName("forgepack-linux-arm-v7"); got != "buildx_buildkit_forgepack-linux-arm-v70" {
		t.Fatalf("containerName = %q", got)
	}
	if got := d.Address("x"); got != "docker-container://buildx_buildkit_x0" {
		t.Fatalf("Address = %q", got)
	}
}
