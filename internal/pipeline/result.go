package pipeline

import (
	"sort"

	"github.com/cruciblehq/forgepack/internal/descriptor"
	"github.com/opencontainers/go-digest"
)

// Describes a finished run, successful or not.
type Result struct {
	RunID     string                   // Unique identifier of the run.
	Target    string                   // Name of the target that was built.
	Platforms []string                 // Platforms requested by the target.
	Profile   descriptor.Profile       // Packaging profile of the target, once validated.
	Rendered  bool                     // Whether the Dockerfile was rendered from the profile.
	Builder   string                   // Builder that ran the build, if one was ensured.
	Output    string                   // OCI layout directory, if the build ran.
	Digest    digest.Digest            // Image digest reported by the build.
	Published map[string]digest.Digest // Tags pushed successfully, with their digest.
	Failed    map[string]error         // Tags that failed to push, with the cause.
	Imported  bool                     // Whether the image was imported into containerd.
	Steps     []*StepResult            // One entry per step, in execution order.
}

// Creates a result with every step marked not attempted.
func newResult(runID, target string, platforms []string) *Result {
	r := &Result{
		RunID:     runID,
		Target:    target,
		Platforms: platforms,
		Published: map[string]digest.Digest{},
		Failed:    map[string]error{},
	}
	for _, s := range steps {
		r.Steps = append(r.Steps, &StepResult{Step: s, Status: StatusNotAttempted})
	}
	return r
}

// Returns the result of step s.
func (r *Result) Step(s Step) *StepResult {
	for _, sr := range r.Steps {
		if sr.Step == s {
			return sr
		}
	}
	return nil
}

// Returns true if no step failed.
func (r *Result) Succeeded() bool {
	for _, sr := range r.Steps {
		if sr.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Returns the published tags in sorted order.
func (r *Result) PublishedTags() []string {
	return sortedKeys(r.Published)
}

// Returns the failed tags in sorted order.
func (r *Result) FailedTags() []string {
	return sortedKeys(r.Failed)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
