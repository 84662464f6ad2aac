package executor

import (
	"sync"
	"time"

	"ferry/pkg/api"
	"ferry/pkg/events"
	"ferry/pkg/scheduler"
	"ferry/pkg/util/context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// JobRunner runs one job to completion.
type JobRunner interface {
	Run(ctx context.Context, job api.Job) api.Outcome
}

// JobRunnerFunc is a function implementing JobRunner.
type JobRunnerFunc func(ctx context.Context, job api.Job) api.Outcome

// Run implements JobRunner.
func (f JobRunnerFunc) Run(ctx context.Context, job api.Job) api.Outcome {
	return f(ctx, job)
}

// Coordinator drives the layers of a plan one after the other.
type Coordinator struct {
	r           JobRunner
	maxParallel int64
	handlers    events.Multi
	runID       string
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMaxParallel bounds the number of jobs of a layer running at the same time. Zero or less means unbounded.
func WithMaxParallel(n int) CoordinatorOption {
	return func(c *Coordinator) {
		c.maxParallel = int64(n)
	}
}

// WithHandlers registers handlers receiving the run events.
func WithHandlers(h ...events.Handler) CoordinatorOption {
	return func(c *Coordinator) {
		c.handlers = append(c.handlers, h...)
	}
}

// WithRunID sets the run ID. A random one is generated otherwise.
func WithRunID(id string) CoordinatorOption {
	return func(c *Coordinator) {
		c.runID = id
	}
}

// NewCoordinator returns a Coordinator running jobs with r.
func NewCoordinator(r JobRunner, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{r: r}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.New().String()
	}
	return c
}

// RunID returns the ID of the runs driven by the coordinator.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Run executes the plan layer by layer and returns the outcome of every job.
// Job failures never stop the run. If ctx is cancelled, the running layer is allowed to resolve,
// the following layers are reported cancelled and the context error is returned along with the report.
func (c *Coordinator) Run(ctx context.Context, plan api.Plan) (api.RunReport, error) {
	ctx = context.WithRunID(ctx, c.runID)
	report := api.RunReport{
		RunID:    c.runID,
		Outcomes: make(map[string]api.Outcome),
	}
	ctx.Logger().Infof("starting run with %d jobs in %d layers", plan.Len(), len(plan))
	c.emit(ctx, events.Event{Type: events.TypeRunStarted, Plan: plan, Status: api.StatusRunning})

	var aborted error
	for i, layer := range plan {
		if err := ctx.Err(); err != nil {
			aborted = err
			c.cancel(ctx, i, plan[i:], &report)
			break
		}
		ctx.Logger().Infof("starting layer %d/%d: %s", i+1, len(plan), scheduler.Describe(layer))
		c.emit(ctx, events.Event{Type: events.TypeLayerStarted, Layer: i, Status: api.StatusRunning})
		for name, o := range c.runLayer(ctx, i, layer) {
			report.Outcomes[name] = o
		}
	}

	if aborted == nil {
		aborted = ctx.Err()
	}

	status := api.StatusCompleted
	switch {
	case aborted != nil:
		status = api.StatusCancelled
	case len(report.Failed()) > 0:
		status = api.StatusFailed
		ctx.Logger().Warnf("run finished with failed jobs: %v", report.Failed())
	default:
		ctx.Logger().Info("run finished successfully")
	}
	c.emit(ctx, events.Event{Type: events.TypeRunFinished, Status: status})
	return report, aborted
}

// runLayer runs every job of the layer on its own goroutine and waits for all of them.
func (c *Coordinator) runLayer(ctx context.Context, index int, layer api.Layer) map[string]api.Outcome {
	var sem *semaphore.Weighted
	if c.maxParallel > 0 {
		sem = semaphore.NewWeighted(c.maxParallel)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[string]api.Outcome, len(layer))
	)
	for _, job := range layer {
		wg.Add(1)
		go func(job api.Job) {
			defer wg.Done()
			jobCtx := context.WithJobName(ctx, job.Name)
			var o api.Outcome
			if sem != nil {
				if err := sem.Acquire(jobCtx, 1); err != nil {
					o = api.ExecutionError(errors.Wrap(err, "job not started"))
					c.finish(jobCtx, index, job, o)
					mu.Lock()
					outcomes[job.Name] = o
					mu.Unlock()
					return
				}
				defer sem.Release(1)
			}
			c.emit(jobCtx, events.Event{Type: events.TypeJobStarted, Job: job.Name, Layer: index, Status: api.StatusRunning})
			o = c.r.Run(jobCtx, job)
			c.finish(jobCtx, index, job, o)
			mu.Lock()
			outcomes[job.Name] = o
			mu.Unlock()
		}(job)
	}
	wg.Wait()
	return outcomes
}

func (c *Coordinator) finish(ctx context.Context, index int, job api.Job, o api.Outcome) {
	switch {
	case !o.Succeeded():
		ctx.Logger().Warnf("job %s: %s", job.Name, o)
	case o.ArtifactError != "":
		ctx.Logger().Warnf("job %s succeeded but its artifacts were not captured: %s", job.Name, o.ArtifactError)
	}
	c.emit(ctx, events.Event{Type: events.TypeJobFinished, Job: job.Name, Layer: index, Status: o.Status(), Outcome: &o})
}

// cancel reports every job of the remaining layers as cancelled.
func (c *Coordinator) cancel(ctx context.Context, first int, layers []api.Layer, report *api.RunReport) {
	ctx.Logger().Warnf("run aborted, %d layers not started", len(layers))
	for i, layer := range layers {
		for _, job := range layer {
			report.Cancelled = append(report.Cancelled, job.Name)
			c.emit(ctx, events.Event{Type: events.TypeJobCancelled, Job: job.Name, Layer: first + i, Status: api.StatusCancelled})
		}
	}
}

// emit dispatches the event to the handlers. Handler errors are logged and never stop the run.
func (c *Coordinator) emit(ctx context.Context, evt events.Event) {
	if len(c.handlers) == 0 {
		return
	}
	evt.RunID = c.runID
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	if err := c.handlers.Handle(ctx, evt); err != nil {
		ctx.Logger().WithError(err).Warnf("cannot handle event %s", evt.Type)
	}
}
