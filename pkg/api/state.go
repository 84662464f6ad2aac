package api

import (
	"sort"
	"time"
)

// RunInfo represents basic run information
type RunInfo struct {
	RunID     string
	Workspace string
}

// RunState represents run state.
type RunState struct {
	RunID     string     `json:"runId"`
	Status    Status     `json:"status"`
	Layers    [][]string `json:"layers,omitempty"`
	Jobs      []JobState `json:"jobs,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Job returns the state of the given job.
func (r RunState) Job(name string) (JobState, bool) {
	for _, j := range r.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobState{}, false
}

// JobState represents job state.
type JobState struct {
	Name      string     `json:"name"`
	Stage     string     `json:"stage,omitempty"`
	Layer     int        `json:"layer"`
	Status    Status     `json:"status"`
	Outcome   *Outcome   `json:"outcome,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// RunReport is what a run returns once every layer has been driven.
type RunReport struct {
	RunID    string
	Outcomes map[string]Outcome
	// Cancelled lists the jobs never started because the run was aborted.
	Cancelled []string
}

// Failed returns the names of the jobs that did not succeed or whose artifacts could not be captured.
func (r RunReport) Failed() []string {
	var res []string
	for name, o := range r.Outcomes {
		if !o.Succeeded() || o.ArtifactError != "" {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}
