package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cruciblehq/forgepack/internal/paths"
	"gopkg.in/yaml.v3"
)

// Persisted builder registry.
type State struct {
	Current  string               `yaml:"current,omitempty"` // Name of the selected builder.
	Builders map[string]*Instance `yaml:"builders"`          // Known builders keyed by name.
}

// Returns the selected builder, or nil when none is selected.
func (s *State) Selected() *Instance {
	if s.Current == "" {
		return nil
	}
	return s.Builders[s.Current]
}

// Loads and saves [State].
type Store interface {
	Load() (*State, error)
	Save(*State) error
}

// A [Store] backed by a YAML file.
type FileStore struct {
	path string // Location of the state file.
}

// Creates a [FileStore] reading and writing path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Reads the state file. A missing file yields an empty state.
func (f *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &State{Builders: map[string]*Instance{}}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrState, err)
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrState, f.path, err)
	}
	if s.Builders == nil {
		s.Builders = map[string]*Instance{}
	}
	return &s, nil
}

// Writes the state file atomically by renaming a temporary sibling.
func (f *FileStore) Save(s *State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}

	tmp, err := os.CreateTemp(dir, ".builders-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrState, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}
	if err := os.Chmod(tmp.Name(), paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}
	return nil
}
