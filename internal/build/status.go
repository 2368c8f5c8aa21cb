package build

import (
	"log/slog"
	"strings"

	"github.com/moby/buildkit/client"
	"github.com/opencontainers/go-digest"
)

// Logs BuildKit progress until ch is closed.
//
// Completed vertices are logged at debug level, failed ones as warnings.
// Build output lines are logged at debug level under the vertex name.
func drainStatus(ch chan *client.SolveStatus) {
	names := make(map[digest.Digest]string)
	done := make(map[digest.Digest]struct{})

	for st := range ch {
		for _, v := range st.Vertexes {
			names[v.Digest] = v.Name
			if v.Completed == nil {
				continue
			}
			if _, ok := done[v.Digest]; ok {
				continue
			}
			done[v.Digest] = struct{}{}

			if v.Error != "" {
				slog.Warn("build step failed", "step", v.Name, "error", v.Error)
				continue
			}
			slog.Debug("build step done", "step", v.Name, "cached", v.Cached)
		}

		for _, l := range st.Logs {
			line := strings.TrimRight(string(l.Data), "\n")
			if line == "" {
				continue
			}
			slog.Debug(line, "step", names[l.Vertex])
		}
	}
}
