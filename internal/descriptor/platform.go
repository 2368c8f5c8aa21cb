package descriptor

import (
	"fmt"
	"strings"

	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Operating systems accepted as the first platform component. Anything else
// is read as an architecture with an implied linux OS, so "arm/v7" means
// "linux/arm/v7".
var knownOS = map[string]struct{}{
	"linux":   {},
	"windows": {},
	"darwin":  {},
	"freebsd": {},
}

// Parses a platform identifier and returns it in canonical
// "os/arch[/variant]" form together with its OCI representation.
func ParsePlatform(s string) (string, ocispec.Platform, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ocispec.Platform{}, fmt.Errorf("empty platform")
	}

	first, _, _ := strings.Cut(s, "/")
	if _, ok := knownOS[strings.ToLower(first)]; !ok {
		s = "linux/" + s
	}

	p, err := platforms.Parse(s)
	if err != nil {
		return "", ocispec.Platform{}, err
	}
	p = platforms.Normalize(p)

	return platforms.Format(p), p, nil
}

// Normalizes a list of platforms, dropping duplicates while keeping the
// declaration order.
func normalizePlatforms(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		p, _, err := ParsePlatform(raw)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", raw, err)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
