package packaging

import (
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/identity"
	"github.com/cruciblehq/forgepack/internal/launch"
)

const (

	// BuildKit secret holding the administration password.
	AdminPasswordSecret = "admin_password"

	// Location of the forgepack binary inside the image.
	LauncherPath = "/usr/local/bin/forgepack"

	// Default images.
	DefaultBaseImage    = "python:3.11-alpine"
	DefaultBuilderImage = "golang:1.25-alpine"
)

// Liveness polling applied by the container host.
type Healthcheck struct {
	Interval    time.Duration // Time between probes.
	Timeout     time.Duration // Time a single probe may take.
	StartPeriod time.Duration // Grace period after start.
	Retries     int           // Consecutive failures before unhealthy.
}

// Administration account of the full-admin profile.
type Admin struct {
	Name  string // Account name.
	Shell string // Login shell.
}

// Describes the proxy image.
type Spec struct {
	Profile      descriptor.Profile // Profile the spec was derived from.
	BaseImage    string             // Runtime base image.
	BuilderImage string             // Image compiling the launcher.
	Packages     []string           // System packages installed with apk.
	Requirements string             // Python requirements file, relative to the context.
	AppDir       string             // Application directory and working directory.
	Sources      []string           // Files copied from the context into AppDir.
	Command      []string           // Service command run by the launcher.
	Identity     identity.Mapping   // Runtime user and host ownership.
	Env          map[string]string  // Runtime configuration defaults baked into the image.
	Health       Healthcheck        // Liveness polling.
	Admin        *Admin             // Administration account; nil outside full-admin.
}

// Returns the spec for a profile. Unknown profiles fall back to minimal.
func ForProfile(p descriptor.Profile) *Spec {
	defaults := launch.Defaults()
	delete(defaults, launch.EnvOllamaURL)

	m := identity.Default()
	m.OwnedPaths = []string{defaults[launch.EnvStoragePath]}

	s := &Spec{
		Profile:      descriptor.ProfileMinimal,
		BaseImage:    DefaultBaseImage,
		BuilderImage: DefaultBuilderImage,
		Packages:     []string{"ca-certificates", "tzdata"},
		Requirements: "requirements.txt",
		AppDir:       "/app",
		Sources:      []string{"main.py", "forge_proxy.py", "favicon.ico"},
		Command:      []string{"python", "main.py"},
		Identity:     m,
		Env:          defaults,
		Health: Healthcheck{
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			StartPeriod: 5 * time.Second,
			Retries:     3,
		},
	}

	if p == descriptor.ProfileFullAdmin {
		s.Profile = descriptor.ProfileFullAdmin
		s.Packages = append(s.Packages, "bash", "curl", "shadow", "sudo")
		s.Admin = &Admin{Name: "admin", Shell: "/bin/bash"}
	}
	return s
}

// Checks the spec for values that would produce a broken or unsafe image.
func (s *Spec) Validate() error {
	if s.BaseImage == "" || s.BuilderImage == "" {
		return fmt.Errorf("%w: base and builder images are required", ErrSpecInvalid)
	}
	if !path.IsAbs(s.AppDir) {
		return fmt.Errorf("%w: app dir %q is not absolute", ErrSpecInvalid, s.AppDir)
	}
	if len(s.Command) == 0 {
		return fmt.Errorf("%w: service command is required", ErrSpecInvalid)
	}
	if err := s.Identity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSpecInvalid, err)
	}
	if s.Admin != nil {
		if s.Admin.Name == "" || s.Admin.Name == s.Identity.RuntimeUser.Name {
			return fmt.Errorf("%w: admin account must be named and differ from the runtime user", ErrSpecInvalid)
		}
	}
	if s.Health.Retries < 1 || s.Health.Interval <= 0 || s.Health.Timeout <= 0 {
		return fmt.Errorf("%w: health check needs a positive interval, timeout and retry count", ErrSpecInvalid)
	}
	return nil
}

// Returns the listen port baked into the image, for EXPOSE.
func (s *Spec) port() string {
	if p, err := strconv.Atoi(s.Env[launch.EnvTranslatePort]); err == nil {
		return strconv.Itoa(p)
	}
	return launch.Defaults()[launch.EnvTranslatePort]
}
