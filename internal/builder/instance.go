package builder

import (
	"time"

	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// A reusable, named build executor.
type Instance struct {
	Name      string    `yaml:"name"`      // Builder name, unique per driver.
	Driver    string    `yaml:"driver"`    // Name of the driver that provisioned it.
	Address   string    `yaml:"address"`   // BuildKit address used to reach it.
	Platforms []string  `yaml:"platforms"` // Platforms its workers can target.
	Created   time.Time `yaml:"created"`   // When the builder was first recorded.
}

// Returns true if any of the builder's platforms can produce p.
//
// Matching follows containerd's compatibility rules, so an arm/v7 worker also
// satisfies arm/v6 requests.
func (i *Instance) Supports(p ocispec.Platform) bool {
	for _, raw := range i.Platforms {
		w, err := platforms.Parse(raw)
		if err != nil {
			continue
		}
		if platforms.Only(w).Match(p) {
			return true
		}
	}
	return false
}

// Returns true if the builder can produce every platform in ps.
func (i *Instance) SupportsAll(ps []ocispec.Platform) bool {
	for _, p := range ps {
		if !i.Supports(p) {
			return false
		}
	}
	return true
}

// Formats worker platforms as canonical strings, without duplicates.
func formatPlatforms(ps []ocispec.Platform) []string {
	seen := make(map[string]struct{}, len(ps))
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		s := platforms.Format(platforms.Normalize(p))
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
