// Package executor drives a plan: it runs every job of a layer concurrently and waits for the whole layer
// before starting the next one.
package executor

import (
	"bufio"
	gocontext "context"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"ferry/pkg/api"
	"ferry/pkg/artifact"
	"ferry/pkg/executor/runtime"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

// scriptSeparator joins the commands of a script so that the first failing one stops the job.
const scriptSeparator = " && "

// Runner runs a single job in a container and classifies how it ended.
type Runner struct {
	rt        runtime.Runtime
	arts      artifact.Store
	console   *Console
	workspace string
	timeout   time.Duration
	inherit   bool
	env       map[string]string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConsole sets the writer job output is printed to. Defaults to stdout.
func WithConsole(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.console = NewConsole(w)
	}
}

// WithWorkspace sets the host directory mounted in every job container. Defaults to the current directory.
func WithWorkspace(dir string) RunnerOption {
	return func(r *Runner) {
		r.workspace = dir
	}
}

// WithJobTimeout bounds the duration of each job. Zero means no limit.
func WithJobTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithInheritArtifacts makes every job restore the archives of the jobs it needs before running.
func WithInheritArtifacts(inherit bool) RunnerOption {
	return func(r *Runner) {
		r.inherit = inherit
	}
}

// WithEnv sets environment variables passed to every job.
func WithEnv(env map[string]string) RunnerOption {
	return func(r *Runner) {
		r.env = env
	}
}

// NewRunner returns a Runner launching jobs with rt and saving their artifacts into arts.
// arts may be nil, artifacts are then ignored.
func NewRunner(rt runtime.Runtime, arts artifact.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		rt:        rt,
		arts:      arts,
		console:   NewConsole(os.Stdout),
		workspace: ".",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run runs the job and returns its outcome. Failures are never returned as errors, they are part of the outcome.
func (r *Runner) Run(ctx context.Context, job api.Job) api.Outcome {
	job = job.Clone()
	ctx = context.WithJobName(ctx, job.Name)

	outcome := r.execute(ctx, job)
	r.console.Status(job.Name, outcome.StatusLine())
	if !outcome.Succeeded() {
		if len(job.Artifacts) > 0 {
			ctx.Logger().Debugf("job ended with %s, artifacts are not captured", outcome.StatusLine())
		}
		return outcome
	}

	if err := r.save(ctx, job); err != nil {
		ctx.Logger().WithError(err).Warn("cannot save artifacts")
		outcome.ArtifactError = err.Error()
		r.console.Status(job.Name, "ARTIFACT ERROR: "+outcome.ArtifactError)
	}
	return outcome
}

func (r *Runner) execute(ctx context.Context, job api.Job) api.Outcome {
	if r.inherit {
		r.inheritArtifacts(ctx, job)
	}

	command := strings.Join(job.Script, scriptSeparator)
	if command == "" {
		ctx.Logger().Info("empty script, nothing to run")
		return api.Success()
	}

	jobCtx, cancel := ctx, gocontext.CancelFunc(func() {})
	if r.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	ctx.Logger().Infof("starting job with image %s", job.Image)
	start := time.Now()
	h, err := r.rt.Start(jobCtx, runtime.Spec{
		RunID:     ctx.RunID(),
		Job:       job.Name,
		Image:     job.Image,
		Command:   command,
		Workspace: r.workspace,
		Env:       r.env,
	})
	if err != nil {
		ctx.Logger().WithError(err).Error("cannot start job")
		return api.ExecutionError(errors.Wrap(err, "cannot start container"))
	}

	r.stream(ctx, job.Name, h.Output())

	exit, err := h.Wait()
	if r.timeout > 0 && errors.Is(jobCtx.Err(), gocontext.DeadlineExceeded) && ctx.Err() == nil {
		ctx.Logger().Warnf("job timed out after %s", r.timeout)
		return api.ExecutionError(errors.Errorf("timed out after %s", r.timeout))
	}
	if err != nil {
		ctx.Logger().WithError(err).Error("cannot wait for job")
		return api.ExecutionError(err)
	}
	ctx.Logger().Infof("job ended with %s after %s", exit, time.Since(start).Round(time.Millisecond))

	switch {
	case exit.Signaled():
		return api.TerminatedBySignal(exit.Signal)
	case exit.Code != 0:
		return api.FailedWithExitCode(exit.Code)
	default:
		return api.Success()
	}
}

// stream prints every line of out until EOF.
// A read error stops the printing but the stream is still drained so that the process is never blocked.
func (r *Runner) stream(ctx context.Context, job string, out io.Reader) {
	rd := bufio.NewReader(out)
	for {
		line, err := rd.ReadString('\n')
		if line != "" {
			r.console.Output(job, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			ctx.Logger().WithError(err).Warn("cannot read job output")
			if n, err := io.Copy(ioutil.Discard, out); err != nil {
				ctx.Logger().WithError(err).Debugf("cannot drain job output, %d bytes discarded", n)
			}
			return
		}
	}
}

func (r *Runner) save(ctx context.Context, job api.Job) error {
	if len(job.Artifacts) == 0 {
		return nil
	}
	if r.arts == nil {
		return errors.New("no artifact store configured")
	}
	ctx.Logger().Debugf("saving artifacts %v", job.Artifacts)
	return r.arts.Save(ctx, job.Name, job.Artifacts)
}

func (r *Runner) inheritArtifacts(ctx context.Context, job api.Job) {
	if r.arts == nil {
		return
	}
	for _, need := range job.Needs {
		err := r.arts.Load(ctx, need, job.Name)
		switch {
		case err == nil:
			ctx.Logger().Debugf("restored artifacts of %s", need)
		case artifact.IsNotFound(err):
			ctx.Logger().Warnf("no artifacts of %s to restore", need)
		default:
			ctx.Logger().WithError(err).Warnf("cannot restore artifacts of %s", need)
		}
	}
}
