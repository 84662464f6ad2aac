package store

import (
	"time"

	"ferry/pkg/api"
	"ferry/pkg/util/context"
)

// Store interface defines access to the run states backend
type Store interface {
	// CreateRun registers a run with every job of its plan in status CREATED.
	CreateRun(ctx context.Context, runID string, plan api.Plan, t time.Time) error
	SetRunStatus(ctx context.Context, runID string, status api.Status, t time.Time) error
	// SetJobStatus sets the job status. outcome is nil for non final statuses.
	SetJobStatus(ctx context.Context, runID, job string, status api.Status, t time.Time, outcome *api.Outcome) error

	// ListRuns returns the IDs of the known runs, in creation order.
	ListRuns(ctx context.Context) ([]string, error)
	RunState(ctx context.Context, runID string) (api.RunState, error)
	JobState(ctx context.Context, runID, job string) (api.JobState, error)
}
