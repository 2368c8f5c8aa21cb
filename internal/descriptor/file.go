package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"gopkg.in/yaml.v3"
)

// A parsed descriptor file.
type File struct {
	Default string             `yaml:"default,omitempty"` // Target selected when none is named.
	Targets map[string]*Target `yaml:"targets"`           // Targets keyed by name.

	root string // Directory the file was read from; contexts are confined to it.
}

// Reads and parses the descriptor file at path.
//
// When optional is true and the file does not exist, a file containing only
// the built-in [Default] target rooted at the working directory is returned.
func Load(path string, optional bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			slog.Debug("descriptor file not found, using built-in target", "path", path)
			return builtin()
		}
		return nil, fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
	}

	return Parse(data, root)
}

// Parses descriptor YAML. Build contexts are resolved beneath root.
func Parse(data []byte, root string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
	}

	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("%w: no targets declared", ErrDescriptorInvalid)
	}

	for name, t := range f.Targets {
		if t == nil {
			t = &Target{}
			f.Targets[name] = t
		}
		t.Name = name
		applyDefaults(t)
	}

	f.root = root
	return &f, nil
}

// Returns the names of all declared targets, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Targets))
	for name := range f.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Selects a target, applies overrides, resolves its paths and validates it.
//
// An empty name selects the file's default target, or the only target when
// there is exactly one. The stored target is not modified.
func (f *File) Select(name string, o Overrides) (*Target, error) {
	if name == "" {
		name = f.Default
	}
	if name == "" && len(f.Targets) == 1 {
		name = f.Names()[0]
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %w: no default target among %s", ErrDescriptorInvalid, ErrTargetNotFound, strings.Join(f.Names(), ", "))
	}

	stored, ok := f.Targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrDescriptorInvalid, ErrTargetNotFound, name)
	}

	t := stored.Clone()
	o.Apply(t)

	if err := t.resolvePaths(f.root); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Rewrites the context and build file as absolute paths confined to root.
//
// The context is joined beneath root and the build file beneath the context,
// so symlinks and ".." components cannot escape the project. Absolute paths
// are accepted only when they already lie within root (or the context, for
// the build file).
func (t *Target) resolvePaths(root string) error {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
		}
		root = wd
	}

	rel, err := relativeTo(root, t.Context)
	if err != nil {
		return fmt.Errorf("%w: target %q: context: %w", ErrDescriptorInvalid, t.Name, err)
	}
	contextDir, err := securejoin.SecureJoin(root, rel)
	if err != nil {
		return fmt.Errorf("%w: target %q: context %q: %w", ErrDescriptorInvalid, t.Name, t.Context, err)
	}

	file, err := relativeTo(contextDir, t.BuildFile)
	if err != nil {
		return fmt.Errorf("%w: target %q: dockerfile: %w", ErrDescriptorInvalid, t.Name, err)
	}
	buildFile, err := securejoin.SecureJoin(contextDir, file)
	if err != nil {
		return fmt.Errorf("%w: target %q: dockerfile %q: %w", ErrDescriptorInvalid, t.Name, t.BuildFile, err)
	}

	t.Context = contextDir
	t.BuildFile = buildFile
	return nil
}

// Returns p relative to base. Relative paths are returned unchanged;
// absolute paths must lie within base.
func relativeTo(base, p string) (string, error) {
	if !filepath.IsAbs(p) {
		return p, nil
	}
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("absolute path %q is outside %q", p, base)
	}
	return rel, nil
}

// Fills unset fields with the same values the built-in target uses.
func applyDefaults(t *Target) {
	if t.Context == "" {
		t.Context = "."
	}
	if t.BuildFile == "" {
		t.BuildFile = "Dockerfile"
	}
	if t.Output == "" {
		t.Output = OutputLocal
	}
	if t.Profile == "" {
		t.Profile = ProfileMinimal
	}
	if _, ok := t.Labels[createdLabel]; !ok {
		if t.Labels == nil {
			t.Labels = make(map[string]string, 1)
		}
		t.Labels[createdLabel] = TimestampValue
	}
}

// Returns a file holding only the built-in target.
func builtin() (*File, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
	}
	t := Default()
	return &File{
		Default: t.Name,
		Targets: map[string]*Target{t.Name: t},
		root:    wd,
	}, nil
}
