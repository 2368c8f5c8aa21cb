package pipeline

import "time"

// Names a pipeline step.
type Step string

const (
	StepValidate      Step = "validate"
	StepAuthenticate  Step = "authenticate"
	StepEnsureBuilder Step = "ensure-builder"
	StepBuild         Step = "build"
	StepPublish       Step = "publish"
)

// Steps in execution order.
var steps = []Step{StepValidate, StepAuthenticate, StepEnsureBuilder, StepBuild, StepPublish}

// Outcome of a single step.
type Status string

const (
	StatusNotAttempted Status = "not-attempted"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
)

// Records how a step ended.
type StepResult struct {
	Step     Step          // Step name.
	Status   Status        // How the step ended.
	Err      error         // Cause of failure, nil unless Status is StatusFailed.
	Duration time.Duration // Time spent in the step.
}
