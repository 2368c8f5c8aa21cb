package descriptor

import (
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// OCI label recording the build time.
const createdLabel = ocispec.AnnotationCreated

// Values that replace descriptor fields, typically bound to flags and
// environment variables. Zero values leave the field untouched.
type Overrides struct {
	Context   string            // Replaces the build context.
	BuildFile string            // Replaces the Dockerfile path.
	Platforms []string          // Replaces the platform list.
	Tags      []string          // Replaces the tag list.
	Output    OutputMode        // Replaces the output mode.
	Profile   Profile           // Replaces the packaging profile.
	Labels    map[string]string // Merged over the declared labels.
}

// Applies the overrides to t.
func (o Overrides) Apply(t *Target) {
	if o.Context != "" {
		t.Context = o.Context
	}
	if o.BuildFile != "" {
		t.BuildFile = o.BuildFile
	}
	if p := compact(o.Platforms); len(p) > 0 {
		t.Platforms = p
	}
	if tags := compact(o.Tags); len(tags) > 0 {
		t.Tags = tags
	}
	if o.Output != "" {
		t.Output = o.Output
	}
	if o.Profile != "" {
		t.Profile = o.Profile
	}
	if len(o.Labels) > 0 && t.Labels == nil {
		t.Labels = make(map[string]string, len(o.Labels))
	}
	for k, v := range o.Labels {
		t.Labels[k] = v
	}
}

// Trims entries and drops empty ones, so that "a, ,b" from a comma-separated
// environment variable yields [a b].
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
