// Package events defines the lifecycle events emitted while a run progresses.
package events

import (
	"fmt"
	"time"

	"ferry/pkg/api"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

// EventType type of event
type EventType string

const (
	TypeRunStarted   EventType = "RUN_STARTED"
	TypeLayerStarted EventType = "LAYER_STARTED"
	TypeJobStarted   EventType = "JOB_STARTED"
	TypeJobFinished  EventType = "JOB_FINISHED"
	TypeJobCancelled EventType = "JOB_CANCELLED"
	TypeRunFinished  EventType = "RUN_FINISHED"
)

// Event represents a step of a run.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"runId"`
	// Job is set for job events.
	Job string `json:"job,omitempty"`
	// Layer is the index of the layer, starting at 0, for layer and job events.
	Layer int `json:"layer"`
	// Plan is set for TypeRunStarted.
	Plan api.Plan `json:"plan,omitempty"`
	// Status is the new status of the run or the job.
	Status api.Status `json:"status"`
	// Outcome is set for TypeJobFinished.
	Outcome *api.Outcome `json:"outcome,omitempty"`
	Time    time.Time    `json:"time"`
}

func (e Event) String() string {
	if e.Job != "" {
		return fmt.Sprintf("%s for job %s of run %s", e.Type, e.Job, e.RunID)
	}
	return fmt.Sprintf("%s for run %s", e.Type, e.RunID)
}

// Handler receives events. Handlers may be called concurrently.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc is a function implementing Handler.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Multi dispatches events to several handlers.
// Every handler is called, the first error is returned.
type Multi []Handler

// Handle implements Handler.
func (m Multi) Handle(ctx context.Context, evt Event) error {
	var first error
	for _, h := range m {
		if err := h.Handle(ctx, evt); err != nil && first == nil {
			first = errors.Wrapf(err, "cannot handle event %s", evt)
		}
	}
	return first
}
