package store

import (
	"ferry/pkg/api"
	"ferry/pkg/events"
	"ferry/pkg/util/context"
)

// Recorder returns an events.Handler keeping the store up to date with the run events.
func Recorder(s Store) events.Handler {
	return events.HandlerFunc(func(ctx context.Context, evt events.Event) error {
		switch evt.Type {
		case events.TypeRunStarted:
			return s.CreateRun(ctx, evt.RunID, evt.Plan, evt.Time)
		case events.TypeJobStarted:
			return s.SetJobStatus(ctx, evt.RunID, evt.Job, api.StatusRunning, evt.Time, nil)
		case events.TypeJobFinished, events.TypeJobCancelled:
			return s.SetJobStatus(ctx, evt.RunID, evt.Job, evt.Status, evt.Time, evt.Outcome)
		case events.TypeRunFinished:
			return s.SetRunStatus(ctx, evt.RunID, evt.Status, evt.Time)
		default:
			// Ignoring other event types
			return nil
		}
	})
}
