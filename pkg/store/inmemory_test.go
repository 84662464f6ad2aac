package store

import (
	"sync"
	"testing"
	"time"

	"ferry/pkg/api"
	"ferry/pkg/events"
	"ferry/pkg/util/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan() api.Plan {
	return api.Plan{
		api.NewLayer([]api.Job{{Name: "build", Stage: "build"}}),
		api.NewLayer([]api.Job{{Name: "test"}, {Name: "lint"}}),
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	t0 := time.Unix(1577836800, 0)

	require.NoError(t, s.CreateRun(ctx, "r1", testPlan(), t0))
	require.Error(t, s.CreateRun(ctx, "r1", testPlan(), t0))

	state, err := s.RunState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusRunning, state.Status)
	assert.Equal(t, [][]string{{"build"}, {"lint", "test"}}, state.Layers)
	require.Len(t, state.Jobs, 3)
	assert.Equal(t, api.JobState{Name: "build", Stage: "build", Layer: 0, Status: api.StatusCreated}, state.Jobs[0])

	require.NoError(t, s.SetJobStatus(ctx, "r1", "lint", api.StatusRunning, t0, nil))
	o := api.FailedWithExitCode(2)
	require.NoError(t, s.SetJobStatus(ctx, "r1", "lint", o.Status(), t0.Add(time.Second), &o))
	// Finished jobs cannot change status anymore
	require.Error(t, s.SetJobStatus(ctx, "r1", "lint", api.StatusRunning, t0, nil))

	js, err := s.JobState(ctx, "r1", "lint")
	require.NoError(t, err)
	assert.Equal(t, api.StatusFailed, js.Status)
	assert.Equal(t, 1, js.Layer)
	require.NotNil(t, js.Outcome)
	assert.Equal(t, 2, js.Outcome.ExitCode)
	assert.Equal(t, time.Second, js.EndTime.Sub(*js.StartTime))

	require.NoError(t, s.SetRunStatus(ctx, "r1", api.StatusFailed, t0.Add(time.Minute)))
	state, _ = s.RunState(ctx, "r1")
	assert.Equal(t, api.StatusFailed, state.Status)
	require.NotNil(t, state.EndTime)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, runs)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, err := s.RunState(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "run missing not found")

	require.NoError(t, s.CreateRun(ctx, "r1", testPlan(), time.Now()))
	_, err = s.JobState(ctx, "r1", "deploy")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.SetJobStatus(ctx, "r1", "deploy", api.StatusRunning, time.Now(), nil)))
	assert.True(t, IsNotFound(s.SetRunStatus(ctx, "r2", api.StatusCompleted, time.Now())))
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	h := Recorder(s)
	now := time.Now()
	ok := api.Success()

	require.NoError(t, h.Handle(ctx, events.Event{Type: events.TypeRunStarted, RunID: "r", Plan: testPlan(), Time: now}))
	require.NoError(t, h.Handle(ctx, events.Event{Type: events.TypeLayerStarted, RunID: "r", Time: now}))

	var wg sync.WaitGroup
	for _, name := range []string{"build", "lint", "test"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, h.Handle(ctx, events.Event{Type: events.TypeJobStarted, RunID: "r", Job: name, Time: now}))
			assert.NoError(t, h.Handle(ctx, events.Event{Type: events.TypeJobFinished, RunID: "r", Job: name, Status: ok.Status(), Outcome: &ok, Time: now}))
		}(name)
	}
	wg.Wait()
	require.NoError(t, h.Handle(ctx, events.Event{Type: events.TypeRunFinished, RunID: "r", Status: api.StatusCompleted, Time: now}))

	state, err := s.RunState(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, api.StatusCompleted, state.Status)
	for _, j := range state.Jobs {
		assert.Equal(t, api.StatusCompleted, j.Status, j.Name)
	}
}
