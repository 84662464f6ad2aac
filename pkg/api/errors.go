package api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ConfigurationError returns a new ErrConfiguration.
func ConfigurationError(format string, args ...interface{}) error {
	return ErrConfiguration{fmt.Sprintf(format, args...)}
}

// ErrConfiguration is the error returned when the pipeline configuration is unreadable or malformed.
type ErrConfiguration struct {
	reason string
}

func (err ErrConfiguration) Error() string {
	return fmt.Sprintf("invalid configuration: %s", err.reason)
}

// ErrDuplicateJob is returned when two jobs share a name.
type ErrDuplicateJob struct {
	Job string
}

func (err ErrDuplicateJob) Error() string {
	return fmt.Sprintf("duplicate job %s", err.Job)
}

// ErrUnknownDependency is returned when a job needs a job that does not exist.
type ErrUnknownDependency struct {
	Job        string
	Dependency string
}

func (err ErrUnknownDependency) Error() string {
	return fmt.Sprintf("job %s needs unknown job %s", err.Job, err.Dependency)
}

// ErrCycle is returned when no valid order exists for a set of jobs.
type ErrCycle struct {
	// Jobs are the jobs that could not be scheduled, sorted by name.
	Jobs []string
	// Path is one dependency cycle found among Jobs, first and last element being the same job.
	Path []string
}

func (err ErrCycle) Error() string {
	if len(err.Path) == 0 {
		return fmt.Sprintf("dependency cycle detected between jobs %s", strings.Join(err.Jobs, ", "))
	}
	return fmt.Sprintf("dependency cycle detected between jobs %s (%s)", strings.Join(err.Jobs, ", "), strings.Join(err.Path, " -> "))
}

// IsConfigurationError returns true if err is caused by an invalid or unreadable configuration.
func IsConfigurationError(err error) bool {
	var ce ErrConfiguration
	var de ErrDuplicateJob
	return errors.As(err, &ce) || errors.As(err, &de)
}

// IsSchedulingError returns true if err is caused by an unknown dependency or a cycle.
func IsSchedulingError(err error) bool {
	var ue ErrUnknownDependency
	var ce ErrCycle
	return errors.As(err, &ue) || errors.As(err, &ce)
}
