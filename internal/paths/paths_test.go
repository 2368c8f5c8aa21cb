package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"linux/arm/v7", "linux-arm-v7"},
		{"translator", "translator"},
		{"registry.io/ns/img:v1", "registry.io-ns-img-v1"},
		{"a b", "a-b"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildUnderCache(t *testing.T) {
	dir := Build("translator", "run-1")
	if !strings.HasPrefix(dir, Cache()+string(filepath.Separator)) {
		t.Fatalf("Build() = %q, want it under %q", dir, Cache())
	}
	if filepath.Base(dir) != "run-1" {
		t.Fatalf("Build() = %q, want run-1 leaf", dir)
	}
}

func TestBuildersUnderState(t *testing.T) {
	if filepath.Dir(Builders()) != State() {
		t.Fatalf("Builders() = %q, want it in %q", Builders(), State())
	}
}
