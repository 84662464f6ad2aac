package api

// Status is item (run or job) status
type Status string

const (
	// StatusCreated default status, item is created
	StatusCreated Status = "CREATED"

	// StatusRunning status for items running
	StatusRunning Status = "RUNNING"

	// StatusCompleted status for items completed
	StatusCompleted Status = "COMPLETED"

	// StatusFailed status for jobs that exited with a non zero code
	StatusFailed Status = "FAILED"

	// StatusTerminated status for jobs killed by a signal
	StatusTerminated Status = "TERMINATED"

	// StatusErrored status for jobs that could not be launched or supervised
	StatusErrored Status = "ERRORED"

	// StatusCancelled status for items never started because the run was aborted
	StatusCancelled Status = "CANCELLED"
)

// Finished returns true if the status is considered final
func (s Status) Finished() bool {
	for _, fs := range []Status{StatusCompleted, StatusFailed, StatusTerminated, StatusErrored, StatusCancelled} {
		if s == fs {
			return true
		}
	}
	return false
}
