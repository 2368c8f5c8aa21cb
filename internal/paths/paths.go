package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	programName = "forgepack"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Permission mode for files that may hold credentials or private state.
	PrivateFileMode os.FileMode = 0600
)

// Directory holding persistent builder state.
//
//	Linux:   $XDG_STATE_HOME/forgepack or ~/.local/state/forgepack
//	macOS:   ~/Library/Application Support/forgepack
func State() string {
	return filepath.Join(xdg.StateHome, programName)
}

// Path to the builder registry file.
//
//	Linux:   $XDG_STATE_HOME/forgepack/builders.yaml
func Builders() string {
	return filepath.Join(State(), "builders.yaml")
}

// Root of the build cache. Build outputs are only ever written below it.
//
//	Linux:   $XDG_CACHE_HOME/forgepack or ~/.cache/forgepack
//	macOS:   ~/Library/Caches/forgepack
func Cache() string {
	return filepath.Join(xdg.CacheHome, programName)
}

// Directory of a single build run. It receives the OCI layout and, when the
// target has no Dockerfile, the one rendered from its packaging profile.
//
//	Linux:   $XDG_CACHE_HOME/forgepack/builds/<target>/<run>
func Build(target, run string) string {
	return filepath.Join(Cache(), "builds", Slug(target), run)
}

// Converts a name or platform into a filesystem-safe slug.
//
// Slashes, colons and whitespace become dashes (e.g., "linux/arm/v7" becomes
// "linux-arm-v7").
func Slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', ' ', '\t', '\\':
			return '-'
		}
		return r
	}, s)
}
