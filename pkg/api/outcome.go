package api

import "fmt"

// OutcomeKind is the terminal classification of a job run.
type OutcomeKind string

const (
	// Succeeded the process exited with code 0.
	Succeeded OutcomeKind = "SUCCEEDED"
	// Failed the process exited with a non zero code.
	Failed OutcomeKind = "FAILED"
	// Terminated the process was killed by a signal.
	Terminated OutcomeKind = "TERMINATED"
	// Errored the process could not be launched or supervised.
	Errored OutcomeKind = "ERRORED"
)

// Outcome is the result of a single job run.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	ExitCode int         `json:"exitCode,omitempty"`
	Signal   int         `json:"signal,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	// ArtifactError is set when the artifacts of a successful job could not be captured.
	// It never changes the Kind.
	ArtifactError string `json:"artifactError,omitempty"`
}

// Success returns a Succeeded outcome.
func Success() Outcome {
	return Outcome{Kind: Succeeded}
}

// FailedWithExitCode returns a Failed outcome.
func FailedWithExitCode(code int) Outcome {
	return Outcome{Kind: Failed, ExitCode: code}
}

// TerminatedBySignal returns a Terminated outcome.
func TerminatedBySignal(sig int) Outcome {
	return Outcome{Kind: Terminated, Signal: sig}
}

// ExecutionError returns an Errored outcome carrying the cause.
func ExecutionError(err error) Outcome {
	return Outcome{Kind: Errored, Reason: err.Error()}
}

// Succeeded returns true if the job exited with code 0.
func (o Outcome) Succeeded() bool {
	return o.Kind == Succeeded
}

// Status maps the outcome onto a job status.
func (o Outcome) Status() Status {
	switch o.Kind {
	case Succeeded:
		return StatusCompleted
	case Failed:
		return StatusFailed
	case Terminated:
		return StatusTerminated
	default:
		return StatusErrored
	}
}

// StatusLine is the final line printed for a job.
func (o Outcome) StatusLine() string {
	switch o.Kind {
	case Succeeded:
		return "SUCCESS"
	case Failed:
		return fmt.Sprintf("FAILURE CODE: %d", o.ExitCode)
	case Terminated:
		return fmt.Sprintf("KILLED SIGNAL: %d", o.Signal)
	default:
		return fmt.Sprintf("ERROR: %s", o.Reason)
	}
}

func (o Outcome) String() string {
	if o.ArtifactError != "" {
		return fmt.Sprintf("%s (artifacts: %s)", o.StatusLine(), o.ArtifactError)
	}
	return o.StatusLine()
}
