package runtime

import (
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

// waitDelay bounds how long output pipes may stay open once the process is gone or killed.
const waitDelay = 5 * time.Second

// process is a Handle over an OS process.
// The process is waited on by its own goroutine; the output pipe is closed once it terminated.
type process struct {
	cmd  *exec.Cmd
	out  *io.PipeReader
	done chan struct{}
	exit Exit
	err  error
}

// startProcess starts the given command with stdout and stderr merged into one stream.
// cancel, if not nil, is called instead of a plain kill when ctx is done.
func startProcess(ctx context.Context, dir string, env map[string]string, cancel func(*exec.Cmd) error, name string, args ...string) (Handle, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), envList(env)...)
	cmd.WaitDelay = waitDelay
	if cancel != nil {
		cmd.Cancel = func() error { return cancel(cmd) }
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, errors.Wrapf(err, "cannot start %s", name)
	}
	ctx.Logger().Tracef("started %s with pid %d", name, cmd.Process.Pid)

	p := &process{
		cmd:  cmd,
		out:  pr,
		done: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		p.exit, p.err = exitOf(ctx, cmd, err)
		pw.Close()
		close(p.done)
	}()
	return p, nil
}

func (p *process) Output() io.Reader {
	return p.out
}

func (p *process) Wait() (Exit, error) {
	<-p.done
	return p.exit, p.err
}

// exitOf converts the result of exec.Cmd.Wait into an Exit.
func exitOf(ctx context.Context, cmd *exec.Cmd, err error) (Exit, error) {
	if err == nil {
		return Exit{}, nil
	}
	if ctx.Err() != nil {
		return Exit{}, errors.Wrap(ctx.Err(), "process interrupted")
	}
	if !errors.Is(err, exec.ErrWaitDelay) {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return Exit{}, errors.Wrap(err, "cannot wait for process")
		}
	}
	if cmd.ProcessState == nil {
		return Exit{}, errors.New("process state unavailable")
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Exit{Signal: int(ws.Signal())}, nil
	}
	return Exit{Code: cmd.ProcessState.ExitCode()}, nil
}
