package builder

import (
	"context"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Provisions build executors in some execution environment.
type Driver interface {

	// Returns the driver name recorded on instances it provisions.
	Name() string

	// Returns the BuildKit address of the named builder.
	Address(name string) string

	// Makes sure the named builder exists and is running. Calling Create for a
	// builder that already exists is not an error.
	Create(ctx context.Context, name string) error

	// Returns the platforms the named builder's workers can target.
	Platforms(ctx context.Context, name string) ([]ocispec.Platform, error)
}
