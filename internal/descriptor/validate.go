package descriptor

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// Checks the target and normalizes its platforms in place.
//
// Returns an error wrapping [ErrDescriptorInvalid] when the platform list is
// empty or unparseable, a tag is not a fully-qualified
// registry/namespace/image:tag reference, a registry push has no tags, or the
// output or profile is unknown.
func (t *Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: target has no name", ErrDescriptorInvalid)
	}

	if len(t.Platforms) == 0 {
		return fmt.Errorf("%w: target %q: at least one platform is required", ErrDescriptorInvalid, t.Name)
	}
	normalized, err := normalizePlatforms(t.Platforms)
	if err != nil {
		return fmt.Errorf("%w: target %q: %w", ErrDescriptorInvalid, t.Name, err)
	}
	t.Platforms = normalized

	switch t.Output {
	case OutputLocal, OutputRegistryPush:
	default:
		return fmt.Errorf("%w: target %q: unknown output %q (want %q or %q)", ErrDescriptorInvalid, t.Name, t.Output, OutputLocal, OutputRegistryPush)
	}

	switch t.Profile {
	case "":
		t.Profile = ProfileMinimal
	case ProfileMinimal, ProfileFullAdmin:
	default:
		return fmt.Errorf("%w: target %q: unknown profile %q", ErrDescriptorInvalid, t.Name, t.Profile)
	}

	for _, tag := range t.Tags {
		if err := ValidateTag(tag); err != nil {
			return fmt.Errorf("%w: target %q: %w", ErrDescriptorInvalid, t.Name, err)
		}
	}

	if t.Pushes() && len(t.Tags) == 0 {
		return fmt.Errorf("%w: target %q: output %q requires at least one tag", ErrDescriptorInvalid, t.Name, t.Output)
	}

	for id, env := range t.Secrets {
		if strings.TrimSpace(id) == "" || strings.TrimSpace(env) == "" {
			return fmt.Errorf("%w: target %q: secret entries need an id and an environment variable", ErrDescriptorInvalid, t.Name)
		}
	}

	return nil
}

// Checks that tag is a fully-qualified registry/namespace/image:tag reference.
//
// The registry must be explicit (no implied docker.io), the repository path
// needs at least a namespace and an image component, and the reference must
// carry a tag but no digest.
func ValidateTag(tag string) error {
	named, err := reference.ParseNamed(tag)
	if err != nil {
		return fmt.Errorf("tag %q: %w", tag, err)
	}

	if reference.Domain(named) == "" || !strings.HasPrefix(tag, reference.Domain(named)+"/") {
		return fmt.Errorf("tag %q: registry host is required", tag)
	}

	if !strings.Contains(reference.Path(named), "/") {
		return fmt.Errorf("tag %q: expected registry/namespace/image:tag", tag)
	}

	if _, ok := named.(reference.Digested); ok {
		return fmt.Errorf("tag %q: digests are not allowed", tag)
	}

	if _, ok := named.(reference.Tagged); !ok {
		return fmt.Errorf("tag %q: explicit tag is required", tag)
	}

	return nil
}
