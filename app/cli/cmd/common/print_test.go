package common

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ferry/pkg/api"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	t1 := time.Unix(1577836800, 0)
	t2 := time.Unix(1577845810, 0)

	s := duration(&t1, &t2)
	assert.Equal(t, "2h 30m 10s", s)

	assert.Equal(t, "", duration(nil, &t2))
}

func TestJobProgression(t *testing.T) {
	assert.Equal(t, "", jobProgression(nil))
	assert.Equal(t, "0/1", jobProgression([]api.JobState{{Status: api.StatusFailed}}))
	assert.Equal(t, "2/2", jobProgression([]api.JobState{{Status: api.StatusCompleted}, {Status: api.StatusCompleted}}))
	assert.Equal(t, strings.Repeat("■", 10)+strings.Repeat("·", 10)+" 1/2",
		jobProgression([]api.JobState{{Status: api.StatusCompleted}, {Status: api.StatusFailed}}))
}

func TestPrintRun(t *testing.T) {
	start := time.Unix(1577836800, 0)
	end := start.Add(5 * time.Second)
	failed := api.FailedWithExitCode(2)
	ok := api.Success()
	run := api.RunState{
		RunID:     "run-1",
		Status:    api.StatusFailed,
		StartTime: &start,
		EndTime:   &end,
		Jobs: []api.JobState{
			{Name: "build", Stage: "build", Layer: 0, Status: api.StatusCompleted, Outcome: &ok, StartTime: &start, EndTime: &end},
			{Name: "test", Stage: "test", Layer: 1, Status: api.StatusFailed, Outcome: &failed},
		},
	}

	buf := &bytes.Buffer{}
	PrintRun(buf, run, PrintOptions{})
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "├ ✔ build")
	assert.Contains(t, out, "└ ✖ test")
	assert.Contains(t, out, "FAILURE CODE: 2")
	assert.NotContains(t, out, "\033[")

	buf.Reset()
	PrintRun(buf, run, PrintOptions{Color: true})
	assert.Contains(t, buf.String(), "\033[")
}
