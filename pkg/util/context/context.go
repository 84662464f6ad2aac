package context

import (
	gocontext "context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	std   = newLogger()
	stdMu sync.RWMutex
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return l
}

// SetLogLevel sets the level of the logger shared by every context.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	stdMu.Lock()
	defer stdMu.Unlock()
	std.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the writer of the logger shared by every context.
func SetLogOutput(w io.Writer) {
	stdMu.Lock()
	defer stdMu.Unlock()
	std.SetOutput(w)
}

// Context extends the regular golang context.Context interface with access to the logger and run information.
type Context interface {
	gocontext.Context
	Logger() *logrus.Entry
	RunID() string
	JobName() string
}

// Background returns a non-nil, empty Context.
func Background() Context {
	return ctx{
		Context: gocontext.Background(),
	}
}

// FromContext returns a new context from the given go context.
// If c already is a Context, it is returned as is.
func FromContext(c gocontext.Context) Context {
	if asCtx, isCtx := c.(Context); isCtx {
		return asCtx
	}
	return ctx{
		Context: c,
	}
}

// WithRunID returns a copy of the context with a runID.
func WithRunID(c Context, runID string) Context {
	return ctx{
		c,
		runID,
		c.JobName(),
	}
}

// WithJobName returns a copy of the context with a job name.
func WithJobName(c Context, name string) Context {
	return ctx{
		c,
		c.RunID(),
		name,
	}
}

// WithTimeout returns a copy of the context with a deadline, keeping run information.
func WithTimeout(c Context, d time.Duration) (Context, gocontext.CancelFunc) {
	inner, cancel := gocontext.WithTimeout(c, d)
	return ctx{inner, c.RunID(), c.JobName()}, cancel
}

// WithCancel returns a cancellable copy of the context, keeping run information.
func WithCancel(c Context) (Context, gocontext.CancelFunc) {
	inner, cancel := gocontext.WithCancel(c)
	return ctx{inner, c.RunID(), c.JobName()}, cancel
}

type ctx struct {
	gocontext.Context
	runID   string
	jobName string
}

func (c ctx) Logger() *logrus.Entry {
	stdMu.RLock()
	e := logrus.NewEntry(std)
	stdMu.RUnlock()
	if c.RunID() != "" {
		e = e.WithField("run_id", c.RunID())
	}
	if c.JobName() != "" {
		e = e.WithField("job", c.JobName())
	}
	return e
}

func (c ctx) RunID() string {
	return c.runID
}

func (c ctx) JobName() string {
	return c.jobName
}
