package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/cruciblehq/forgepack/internal/paths"
)

// Prefix of builder names created by the manager.
const namePrefix = "forgepack-"

// Ensures a builder capable of each requested platform exists and is selected.
type Manager struct {
	driver Driver           // Provisions builders.
	store  Store            // Persists known builders and the selection.
	now    func() time.Time // Clock used for creation timestamps.
}

// Creates a [Manager] provisioning through driver and persisting in store.
func NewManager(driver Driver, store Store) *Manager {
	return &Manager{
		driver: driver,
		store:  store,
		now:    time.Now,
	}
}

// Returns a builder capable of platform, creating and selecting one if needed.
//
// When the selected builder already supports the platform it is returned
// unchanged and the driver is not consulted. Otherwise a builder scoped to
// the platform (e.g., "forgepack-linux-arm-v7") is created if absent, probed
// for the platforms it can target, and selected. Errors wrap
// [ErrBuilderUnavailable]; there is no retry.
func (m *Manager) Ensure(ctx context.Context, platform string) (*Instance, error) {
	canonical, p, err := descriptor.ParsePlatform(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuilderUnavailable, err)
	}

	state, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	if cur := state.Selected(); cur != nil && cur.Supports(p) {
		slog.Debug("reusing selected builder", "builder", cur.Name, "platform", canonical)
		return cur, nil
	}

	name := namePrefix + paths.Slug(canonical)
	inst := state.Builders[name]

	if inst == nil || !inst.Supports(p) {
		inst, err = m.provision(ctx, name, inst)
		if err != nil {
			return nil, err
		}
		if !inst.Supports(p) {
			return nil, fmt.Errorf("%w: builder %s cannot target %s (supports %v); install binfmt/QEMU emulation for this architecture", ErrBuilderUnavailable, name, canonical, inst.Platforms)
		}
	}

	state.Builders[name] = inst
	state.Current = name
	if err := m.store.Save(state); err != nil {
		return nil, err
	}

	slog.Info("builder selected", "builder", name, "platform", canonical, "driver", inst.Driver)
	return inst, nil
}

// Returns the selected builder, or nil when none is selected.
func (m *Manager) Selected() (*Instance, error) {
	state, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return state.Selected(), nil
}

// Returns every known builder and the name of the selected one.
func (m *Manager) List() ([]*Instance, string, error) {
	state, err := m.store.Load()
	if err != nil {
		return nil, "", err
	}

	list := make([]*Instance, 0, len(state.Builders))
	for _, inst := range state.Builders {
		list = append(list, inst)
	}
	return list, state.Current, nil
}

// Creates (or reuses) the named builder through the driver and records the
// platforms it reports. The creation time of a known builder is preserved.
func (m *Manager) provision(ctx context.Context, name string, known *Instance) (*Instance, error) {
	slog.Info("provisioning builder", "builder", name, "driver", m.driver.Name())

	if err := m.driver.Create(ctx, name); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrBuilderUnavailable, name, err)
	}

	ps, err := m.driver.Platforms(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: inspect %s: %w", ErrBuilderUnavailable, name, err)
	}

	inst := &Instance{
		Name:      name,
		Driver:    m.driver.Name(),
		Address:   m.driver.Address(name),
		Platforms: formatPlatforms(ps),
		Created:   m.now().UTC(),
	}
	if known != nil {
		inst.Created = known.Created
	}
	return inst, nil
}
