package executor

import (
	"fmt"
	"io"
	"sync"
)

// Console is the writer job output and status lines are printed to.
// Lines written concurrently by different jobs are never interleaved.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Output prints one line of job output.
func (c *Console) Output(job, line string) {
	c.printf("[%s] | %s\n", job, line)
}

// Status prints a status line of the job.
func (c *Console) Status(job, status string) {
	c.printf("[%s] %s\n", job, status)
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
