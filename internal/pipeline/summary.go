package pipeline

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Writes a human-readable report of r to w.
func WriteSummary(w io.Writer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	outcome := "succeeded"
	if !r.Succeeded() {
		outcome = "FAILED"
	}

	fmt.Fprintf(tw, "target\t%s\n", r.Target)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "platforms\t%s\n", strings.Join(r.Platforms, ", "))
	if r.Profile != "" {
		profile := string(r.Profile)
		if r.Rendered {
			profile += " (rendered)"
		}
		fmt.Fprintf(tw, "profile\t%s\n", profile)
	}
	if r.Builder != "" {
		fmt.Fprintf(tw, "builder\t%s\n", r.Builder)
	}
	if r.Output != "" {
		fmt.Fprintf(tw, "output\t%s\n", r.Output)
	}
	if r.Digest != "" {
		fmt.Fprintf(tw, "digest\t%s\n", r.Digest)
	}
	fmt.Fprintf(tw, "result\t%s\n", outcome)
	fmt.Fprintln(tw)

	for _, sr := range r.Steps {
		line := fmt.Sprintf("  %s\t%s", sr.Step, sr.Status)
		if sr.Status != StatusNotAttempted {
			line += "\t" + sr.Duration.Round(time.Millisecond).String()
		}
		if sr.Err != nil {
			line += "\t" + sr.Err.Error()
		}
		fmt.Fprintln(tw, line)
	}

	if len(r.Published) > 0 || len(r.Failed) > 0 {
		fmt.Fprintln(tw)
	}
	for _, tag := range r.PublishedTags() {
		fmt.Fprintf(tw, "  published\t%s\t%s\n", tag, r.Published[tag])
	}
	for _, tag := range r.FailedTags() {
		fmt.Fprintf(tw, "  failed\t%s\t%s\n", tag, r.Failed[tag])
	}
	if r.Imported {
		fmt.Fprintln(tw, "  imported\tcontainerd")
	}

	return tw.Flush()
}
