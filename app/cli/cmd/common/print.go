package common

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"ferry/pkg/api"

	tm "github.com/buger/goterm"
)

const (
	progressBarWidth       = 20
	progressBarChar        = "■"
	progressBarPlaceholder = "·"
)

var (
	jobStatusIconMap  map[api.Status]string
	jobStatusColorMap map[api.Status]int
)

func init() {
	jobStatusIconMap = map[api.Status]string{
		api.StatusCreated:    "◷",
		api.StatusRunning:    "●",
		api.StatusCancelled:  "ǁ",
		api.StatusTerminated: "ǁ",
		api.StatusCompleted:  "✔",
		api.StatusFailed:     "✖",
		api.StatusErrored:    "✖",
	}
	jobStatusColorMap = map[api.Status]int{
		api.StatusRunning:    tm.BLUE,
		api.StatusCancelled:  tm.YELLOW,
		api.StatusTerminated: tm.RED,
		api.StatusCompleted:  tm.GREEN,
		api.StatusFailed:     tm.RED,
		api.StatusErrored:    tm.RED,
	}
}

// PrintOptions defines print options
type PrintOptions struct {
	// Color enables colored status icons.
	Color bool
}

func (o PrintOptions) icon(s api.Status) string {
	icon := jobStatusIconMap[s]
	color, ok := jobStatusColorMap[s]
	if !o.Color || !ok {
		return icon
	}
	return tm.Color(icon, color)
}

// PrintRun prints the run state in the given writer
func PrintRun(w io.Writer, run api.RunState, opts PrintOptions) {
	fmt.Fprintln(w)

	// Header
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "RunID:\t%s\n", run.RunID)
	fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	fmt.Fprintf(tw, "Started:\t%s\n", date(run.StartTime))
	fmt.Fprintf(tw, "Finished:\t%s\n", date(run.EndTime))
	fmt.Fprintf(tw, "Duration:\t%s\n", duration(run.StartTime, run.EndTime))
	fmt.Fprintf(tw, "Succeeded:\t%s\n", jobProgression(run.Jobs))
	tw.Flush()
	fmt.Fprintln(w)

	// Jobs are listed in plan order
	tw.Init(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSTAGE\tLAYER\tDURATION\tRESULT")
	for i, job := range run.Jobs {
		prefix := "├"
		if i == len(run.Jobs)-1 {
			prefix = "└"
		}
		printJob(tw, job, prefix, opts)
	}
	tw.Flush()
}

func printJob(w io.Writer, job api.JobState, prefix string, opts PrintOptions) {
	result := string(job.Status)
	if job.Outcome != nil {
		result = job.Outcome.String()
	}
	fmt.Fprintf(w, "%s %s %s\t%s\t%d\t%s\t%s\n", prefix, opts.icon(job.Status), job.Name, job.Stage, job.Layer+1, duration(job.StartTime, job.EndTime), result)
}

// jobProgression returns a string to be printed for the number of succeeded jobs
func jobProgression(jobs []api.JobState) string {
	total := len(jobs)
	switch total {
	case 0:
		return ""
	case 1:
		if jobs[0].Status == api.StatusCompleted {
			return "1/1"
		}
		return "0/1"
	default:
		succeeded := 0
		for _, j := range jobs {
			if j.Status == api.StatusCompleted {
				succeeded++
			}
		}
		if succeeded == total {
			return fmt.Sprintf("%d/%d", succeeded, total)
		}
		return fmt.Sprintf("%s %d/%d", progressBar(succeeded, total), succeeded, total)
	}

}

func progressBar(current, total int) string {
	value := (current * progressBarWidth) / total
	buf := &bytes.Buffer{}
	for i := 0; i < progressBarWidth; i++ {
		if i < value {
			buf.WriteString(progressBarChar)
		} else {
			buf.WriteString(progressBarPlaceholder)
		}
	}
	return buf.String()
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2 Jan 2006 15:04:05.000")
}

func duration(start, end *time.Time) string {
	var d time.Duration
	if start == nil {
		return ""
	}
	if end == nil {
		d = time.Now().Sub(*start)
	} else {
		d = end.Sub(*start)
	}

	// Print
	if d.Seconds() <= 60.0 {
		return fmt.Sprintf("%0.0fs", d.Seconds())
	} else if d.Minutes() <= 60.0 {
		m := int64(d.Minutes())
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dm %0.0fs", m, s)
	} else {
		h := int64(d.Hours())
		m := int64(math.Mod(d.Minutes(), 60))
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dh %0.dm %0.0fs", h, m, s)
	}
}
