package descriptor

import (
	"maps"
	"slices"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Determines whether a build is pushed to a registry or kept locally.
type OutputMode string

const (
	OutputLocal        OutputMode = "local"         // Artifact stays in the build cache (optionally imported into containerd).
	OutputRegistryPush OutputMode = "registry-push" // Every tag is pushed; credentials are required up front.
)

// Selects the packaging variant rendered for a target.
type Profile string

const (
	ProfileMinimal   Profile = "minimal"    // Service, runtime user and owned storage only.
	ProfileFullAdmin Profile = "full-admin" // Adds an administrative shell account.
)

const (

	// Label value replaced with the build start time.
	TimestampValue = "@timestamp"

	// Label recording the packaging profile an image was built with.
	ProfileLabel = "com.cruciblehq.forgepack.profile"

	// Name of the built-in target used when no descriptor file exists.
	DefaultTargetName = "translator"

	// Platform the built-in target is built for.
	DefaultPlatform = "linux/arm/v7"

	// Default descriptor file name, resolved against the working directory.
	DefaultFilename = "forgepack.yaml"
)

// A single build target.
type Target struct {
	Name      string            `yaml:"-"`                 // Unique target name, taken from the map key.
	Context   string            `yaml:"context"`           // Build context directory.
	BuildFile string            `yaml:"dockerfile"`        // Dockerfile path, relative to the context.
	Platforms []string          `yaml:"platforms"`         // Target platforms, normalized on validation.
	Tags      []string          `yaml:"tags"`              // Fully-qualified image references.
	Labels    map[string]string `yaml:"labels,omitempty"`  // OCI labels; values may be dynamic.
	Output    OutputMode        `yaml:"output"`            // Publish destination.
	Profile   Profile           `yaml:"profile,omitempty"` // Packaging profile.
	Args      map[string]string `yaml:"args,omitempty"`    // Dockerfile build arguments.
	Secrets   map[string]string `yaml:"secrets,omitempty"` // Build secret id to environment variable name.
}

// Returns the built-in target.
//
// It builds the Dockerfile in the current directory for linux/arm/v7 and keeps
// the result locally. Tags and registry publication must be supplied by the
// descriptor file or environment overrides.
func Default() *Target {
	return &Target{
		Name:      DefaultTargetName,
		Context:   ".",
		BuildFile: "Dockerfile",
		Platforms: []string{DefaultPlatform},
		Output:    OutputLocal,
		Profile:   ProfileMinimal,
		Labels: map[string]string{
			ocispec.AnnotationTitle:       "translate-proxy",
			ocispec.AnnotationDescription: "Prompt translation and image generation proxy",
			ocispec.AnnotationCreated:     TimestampValue,
		},
	}
}

// Returns true if the target pushes to a registry.
func (t *Target) Pushes() bool {
	return t.Output == OutputRegistryPush
}

// Returns the labels with dynamic values resolved against now.
//
// The packaging profile is recorded under [ProfileLabel] unless the target
// sets that label itself. The receiver is not modified, so the same target
// can be built repeatedly with fresh timestamps.
func (t *Target) ResolveLabels(now time.Time) map[string]string {
	resolved := make(map[string]string, len(t.Labels)+1)
	stamp := now.UTC().Format(time.RFC3339)
	for k, v := range t.Labels {
		if v == TimestampValue {
			v = stamp
		}
		resolved[k] = v
	}
	if _, ok := resolved[ProfileLabel]; !ok && t.Profile != "" {
		resolved[ProfileLabel] = string(t.Profile)
	}
	return resolved
}

// Returns the tags with duplicates removed, keeping first occurrences.
func (t *Target) UniqueTags() []string {
	seen := make(map[string]struct{}, len(t.Tags))
	out := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Returns a deep copy of the target.
func (t *Target) Clone() *Target {
	c := *t
	c.Platforms = slices.Clone(t.Platforms)
	c.Tags = slices.Clone(t.Tags)
	c.Labels = maps.Clone(t.Labels)
	c.Args = maps.Clone(t.Args)
	c.Secrets = maps.Clone(t.Secrets)
	return &c
}
