package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cruciblehq/forgepack/internal/paths"
	"github.com/moby/buildkit/client"
	"github.com/moby/buildkit/client/llb"
	"github.com/moby/buildkit/exporter/containerimage/exptypes"
	"github.com/moby/buildkit/session"
	"github.com/moby/buildkit/session/secrets/secretsprovider"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
)

const (

	// Frontend that interprets Dockerfiles.
	frontend = "dockerfile.v0"

	// Local source names the Dockerfile frontend reads from.
	localContext    = "context"
	localDockerfile = "dockerfile"
)

// Controls a single build.
type Options struct {
	Address   string            // BuildKit address of the selected builder.
	Context   string            // Build context directory.
	BuildFile string            // Path of the Dockerfile.
	Platforms []string          // Canonical target platforms, built together.
	Tags      []string          // Image names recorded in the exported layout.
	Labels    map[string]string // Image labels, already resolved.
	Args      map[string]string // Dockerfile build arguments.
	Secrets   map[string][]byte // BuildKit secrets keyed by id.
	Output    string            // Directory receiving the OCI image layout.
}

// Returned after a successful build.
type Result struct {
	Output string        // Directory containing the OCI image layout.
	Digest digest.Digest // Digest of the exported image index, when reported.
}

// The subset of the BuildKit client used by [Engine].
type Solver interface {
	Solve(ctx context.Context, def *llb.Definition, opt client.SolveOpt, statusChan chan *client.SolveStatus) (*client.SolveResponse, error)
	Close() error
}

// Connects to the BuildKit instance at address.
type Dialer func(ctx context.Context, address string) (Solver, error)

// Runs builds against BuildKit builders.
type Engine struct {
	dial Dialer // Opens a BuildKit connection per build.
}

// Creates an [Engine] that connects with the BuildKit client.
func NewEngine() *Engine {
	return NewEngineWithDialer(func(ctx context.Context, address string) (Solver, error) {
		return client.New(ctx, address)
	})
}

// Creates an [Engine] that connects through dial.
func NewEngineWithDialer(dial Dialer) *Engine {
	return &Engine{dial: dial}
}

// Builds every platform of opts in one solve and exports an OCI layout.
//
// The output directory is created if needed. Any failure, including one
// reported for a single platform, fails the whole build with
// [ErrBuildFailed].
func (e *Engine) Build(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Platforms) == 0 {
		return nil, fmt.Errorf("%w: no platforms", ErrBuildFailed)
	}

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Info("building image",
		"context", opts.Context,
		"dockerfile", opts.BuildFile,
		"platforms", opts.Platforms,
		"output", opts.Output,
	)

	c, err := e.dial(ctx, opts.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrBuildFailed, opts.Address, err)
	}
	defer c.Close()

	solveOpt := newSolveOpt(opts)

	var resp *client.SolveResponse
	ch := make(chan *client.SolveStatus)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		resp, err = c.Solve(egctx, nil, solveOpt, ch)
		return err
	})
	eg.Go(func() error {
		drainStatus(ch)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	result := &Result{Output: opts.Output}
	if resp != nil {
		if d, err := digest.Parse(resp.ExporterResponse[exptypes.ExporterImageDigestKey]); err == nil {
			result.Digest = d
		}
	}

	slog.Info("image built", "output", result.Output, "digest", result.Digest)
	return result, nil
}

// Translates build options into a BuildKit solve request.
func newSolveOpt(opts Options) client.SolveOpt {
	attrs := map[string]string{
		"filename": filepath.Base(opts.BuildFile),
		"platform": strings.Join(opts.Platforms, ","),
	}
	for k, v := range opts.Labels {
		attrs["label:"+k] = v
	}
	for k, v := range opts.Args {
		attrs["build-arg:"+k] = v
	}

	exportAttrs := map[string]string{"tar": "false"}
	if len(opts.Tags) > 0 {
		exportAttrs["name"] = strings.Join(uniqueSorted(opts.Tags), ",")
	}

	var attachables []session.Attachable
	if len(opts.Secrets) > 0 {
		attachables = append(attachables, secretsprovider.FromMap(opts.Secrets))
	}

	return client.SolveOpt{
		Frontend:      frontend,
		FrontendAttrs: attrs,
		LocalDirs: map[string]string{
			localContext:    opts.Context,
			localDockerfile: filepath.Dir(opts.BuildFile),
		},
		Exports: []client.ExportEntry{{
			Type:      client.ExporterOCI,
			Attrs:     exportAttrs,
			OutputDir: opts.Output,
		}},
		Session: attachables,
	}
}

// Returns the distinct values of s in sorted order.
func uniqueSorted(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
