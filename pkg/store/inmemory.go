package store

import (
	"fmt"
	"sync"
	"time"

	"ferry/pkg/api"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

type run struct {
	status    api.Status
	layers    [][]string
	jobs      map[string]*job
	order     []string
	startTime *time.Time
	endTime   *time.Time
}

type job struct {
	name      string
	stage     string
	layer     int
	status    api.Status
	outcome   *api.Outcome
	startTime *time.Time
	endTime   *time.Time
}

// NewInMemoryStore returns a new InMemory store
func NewInMemoryStore() Store {
	return &inMemory{
		runs: make(map[string]*run),
	}
}

type inMemory struct {
	mu    sync.RWMutex
	runs  map[string]*run
	order []string
}

func (s *inMemory) CreateRun(ctx context.Context, runID string, plan api.Plan, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; exists {
		return errors.Errorf("run %s already exists", runID)
	}
	r := &run{
		status:    api.StatusRunning,
		layers:    plan.Names(),
		jobs:      make(map[string]*job),
		startTime: &t,
	}
	for i, l := range plan {
		for _, j := range l {
			r.jobs[j.Name] = &job{
				name:   j.Name,
				stage:  j.Stage,
				layer:  i,
				status: api.StatusCreated,
			}
			r.order = append(r.order, j.Name)
		}
	}
	s.runs[runID] = r
	s.order = append(s.order, runID)
	return nil
}

func (s *inMemory) SetRunStatus(ctx context.Context, runID string, status api.Status, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.runs[runID]
	if !exists {
		return NotFoundError(fmt.Sprintf("run %s", runID))
	}
	r.status = status
	if status.Finished() {
		r.endTime = &t
	}
	return nil
}

func (s *inMemory) SetJobStatus(ctx context.Context, runID, name string, status api.Status, t time.Time, outcome *api.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.runs[runID]
	if !exists {
		return NotFoundError(fmt.Sprintf("run %s", runID))
	}
	j, exists := r.jobs[name]
	if !exists {
		return NotFoundError(fmt.Sprintf("job %s", name))
	}
	if j.status.Finished() {
		return errors.Errorf("job %s already finished with status %s", name, j.status)
	}
	j.status = status
	switch {
	case status == api.StatusRunning:
		j.startTime = &t
	case status.Finished():
		j.endTime = &t
		if outcome != nil {
			o := *outcome
			j.outcome = &o
		}
	}
	return nil
}

func (s *inMemory) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, len(s.order))
	copy(res, s.order)
	return res, nil
}

func (s *inMemory) RunState(ctx context.Context, runID string) (api.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.runs[runID]
	if !exists {
		return api.RunState{}, NotFoundError(fmt.Sprintf("run %s", runID))
	}
	state := api.RunState{
		RunID:     runID,
		Status:    r.status,
		Layers:    r.layers,
		StartTime: r.startTime,
		EndTime:   r.endTime,
	}
	for _, name := range r.order {
		state.Jobs = append(state.Jobs, r.jobs[name].state())
	}
	return state, nil
}

func (s *inMemory) JobState(ctx context.Context, runID, name string) (api.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.runs[runID]
	if !exists {
		return api.JobState{}, NotFoundError(fmt.Sprintf("run %s", runID))
	}
	j, exists := r.jobs[name]
	if !exists {
		return api.JobState{}, NotFoundError(fmt.Sprintf("job %s", name))
	}
	return j.state(), nil
}

func (j *job) state() api.JobState {
	return api.JobState{
		Name:      j.name,
		Stage:     j.stage,
		Layer:     j.layer,
		Status:    j.status,
		Outcome:   j.outcome,
		StartTime: j.startTime,
		EndTime:   j.endTime,
	}
}
