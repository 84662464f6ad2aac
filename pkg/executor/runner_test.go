package executor

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
	"time"

	"ferry/pkg/api"
	"ferry/pkg/artifact"
	"ferry/pkg/executor/runtime"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	err     error
	handle  runtime.Handle
	started []runtime.Spec
}

type fakeHandle struct {
	out  io.Reader
	exit runtime.Exit
}

func (h fakeHandle) Output() io.Reader { return h.out }

func (h fakeHandle) Wait() (runtime.Exit, error) { return h.exit, nil }

func (f *fakeRuntime) Start(ctx context.Context, spec runtime.Spec) (runtime.Handle, error) {
	f.started = append(f.started, spec)
	if f.err != nil {
		return nil, f.err
	}
	if f.handle != nil {
		return f.handle, nil
	}
	return nil, errors.New("fake runtime cannot start processes")
}

type fakeStore struct {
	saved map[string][]string
}

func (f *fakeStore) Save(ctx context.Context, job string, paths []string) error {
	if f.saved == nil {
		f.saved = make(map[string][]string)
	}
	f.saved[job] = paths
	return nil
}

func (f *fakeStore) Load(ctx context.Context, from, to string) error {
	return artifact.NotFoundError("archive of job " + from)
}

func shellRunner(t *testing.T, ws string, arts artifact.Store, opts ...RunnerOption) (*Runner, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	opts = append([]RunnerOption{WithConsole(out), WithWorkspace(ws)}, opts...)
	return NewRunner(runtime.NewShell(), arts, opts...), out
}

func TestRunnerSuccess(t *testing.T) {
	r, out := shellRunner(t, t.TempDir(), nil)
	o := r.Run(context.Background(), api.Job{Name: "build", Image: "alpine", Script: []string{"echo hello", "echo world"}})
	assert.Equal(t, api.Success(), o)
	assert.Equal(t, "[build] | hello\n[build] | world\n[build] SUCCESS\n", out.String())
}

func TestRunnerFailureStopsScript(t *testing.T) {
	arts := &fakeStore{}
	r, out := shellRunner(t, t.TempDir(), arts)
	o := r.Run(context.Background(), api.Job{Name: "test", Image: "alpine", Script: []string{"false", "echo unreachable"}, Artifacts: []string{"out.txt"}})
	assert.Equal(t, api.FailedWithExitCode(1), o)
	assert.Equal(t, "[test] FAILURE CODE: 1\n", out.String())
	assert.Empty(t, arts.saved)
}

func TestRunnerExitCode(t *testing.T) {
	r, out := shellRunner(t, t.TempDir(), nil)
	o := r.Run(context.Background(), api.Job{Name: "lint", Image: "alpine", Script: []string{"echo oops 1>&2", "exit 42"}})
	assert.Equal(t, api.Failed, o.Kind)
	assert.Equal(t, 42, o.ExitCode)
	assert.Equal(t, "[lint] | oops\n[lint] FAILURE CODE: 42\n", out.String())
}

func TestRunnerSignal(t *testing.T) {
	r, out := shellRunner(t, t.TempDir(), nil)
	o := r.Run(context.Background(), api.Job{Name: "crash", Image: "alpine", Script: []string{"kill -9 $$"}})
	assert.Equal(t, api.TerminatedBySignal(9), o)
	assert.Contains(t, out.String(), "[crash] KILLED SIGNAL: 9\n")
}

func TestRunnerLastLineWithoutNewline(t *testing.T) {
	r, out := shellRunner(t, t.TempDir(), nil)
	o := r.Run(context.Background(), api.Job{Name: "job", Image: "alpine", Script: []string{"printf 'a\\nb'"}})
	assert.True(t, o.Succeeded())
	assert.Equal(t, "[job] | a\n[job] | b\n[job] SUCCESS\n", out.String())
}

func TestRunnerEmptyScript(t *testing.T) {
	rt := &fakeRuntime{}
	out := &bytes.Buffer{}
	arts := &fakeStore{}
	r := NewRunner(rt, arts, WithConsole(out))
	o := r.Run(context.Background(), api.Job{Name: "noop", Image: "alpine", Script: []string{}, Artifacts: []string{"a"}})
	assert.Equal(t, api.Success(), o)
	assert.Empty(t, rt.started)
	assert.Equal(t, []string{"a"}, arts.saved["noop"])
	assert.Equal(t, "[noop] SUCCESS\n", out.String())
}

func TestRunnerStartError(t *testing.T) {
	rt := &fakeRuntime{err: errors.New("docker not found")}
	out := &bytes.Buffer{}
	r := NewRunner(rt, nil, WithConsole(out), WithWorkspace("/ws"), WithEnv(map[string]string{"A": "b"}))
	o := r.Run(context.WithRunID(context.Background(), "run-1"), api.Job{Name: "build", Image: "golang", Script: []string{"go build", "go test"}})
	assert.Equal(t, api.Errored, o.Kind)
	assert.Contains(t, o.Reason, "docker not found")
	assert.Contains(t, out.String(), "[build] ERROR: ")

	require.Len(t, rt.started, 1)
	assert.Equal(t, runtime.Spec{
		RunID:     "run-1",
		Job:       "build",
		Image:     "golang",
		Command:   "go build && go test",
		Workspace: "/ws",
		Env:       map[string]string{"A": "b"},
	}, rt.started[0])
}

func TestRunnerTimeout(t *testing.T) {
	r, out := shellRunner(t, t.TempDir(), nil, WithJobTimeout(100*time.Millisecond))
	start := time.Now()
	o := r.Run(context.Background(), api.Job{Name: "slow", Image: "alpine", Script: []string{"exec sleep 10"}})
	assert.True(t, time.Since(start) < 5*time.Second)
	assert.Equal(t, api.Errored, o.Kind)
	assert.Equal(t, "timed out after 100ms", o.Reason)
	assert.Equal(t, "[slow] ERROR: timed out after 100ms\n", out.String())
}

func TestRunnerSavesArtifacts(t *testing.T) {
	ws := t.TempDir()
	fs, err := artifact.NewFilesystem(t.TempDir(), ws, "run-1")
	require.NoError(t, err)
	r, _ := shellRunner(t, ws, fs)

	o := r.Run(context.Background(), api.Job{Name: "build", Image: "alpine", Script: []string{"mkdir -p dist", "echo bin > dist/app"}, Artifacts: []string{"dist"}})
	assert.Equal(t, api.Success(), o)
	data, err := ioutil.ReadFile(filepath.Join(fs.JobDir("build"), "dist", "app"))
	require.NoError(t, err)
	assert.Equal(t, "bin\n", string(data))
}

func TestRunnerMissingArtifact(t *testing.T) {
	ws := t.TempDir()
	fs, err := artifact.NewFilesystem(t.TempDir(), ws, "run-1")
	require.NoError(t, err)
	r, out := shellRunner(t, ws, fs)

	o := r.Run(context.Background(), api.Job{Name: "build", Image: "alpine", Script: []string{"true"}, Artifacts: []string{"missing.txt"}})
	assert.True(t, o.Succeeded())
	assert.Contains(t, o.ArtifactError, "missing.txt")
	assert.Contains(t, out.String(), "[build] SUCCESS\n[build] ARTIFACT ERROR: ")
}

func TestRunnerInheritArtifacts(t *testing.T) {
	ws := t.TempDir()
	fs, err := artifact.NewFilesystem(t.TempDir(), ws, "run-1")
	require.NoError(t, err)
	r, out := shellRunner(t, ws, fs, WithInheritArtifacts(true))

	o := r.Run(context.Background(), api.Job{Name: "build", Image: "alpine", Script: []string{"echo v1 > version"}, Artifacts: []string{"version"}})
	require.True(t, o.Succeeded())
	require.NoError(t, os.Remove(filepath.Join(ws, "version")))

	o = r.Run(context.Background(), api.Job{Name: "test", Image: "alpine", Script: []string{"cat version"}, Needs: []string{"build"}})
	assert.Equal(t, api.Success(), o)
	assert.Contains(t, out.String(), "[test] | v1\n")
}

func TestRunnerInheritMissingArchive(t *testing.T) {
	r, _ := shellRunner(t, t.TempDir(), &fakeStore{}, WithInheritArtifacts(true))
	o := r.Run(context.Background(), api.Job{Name: "test", Image: "alpine", Script: []string{"true"}, Needs: []string{"build"}})
	assert.Equal(t, api.Success(), o)
}

func TestRunnerOutputReadError(t *testing.T) {
	logs := &bytes.Buffer{}
	context.SetLogOutput(logs)
	require.NoError(t, context.SetLogLevel("debug"))
	defer func() {
		context.SetLogOutput(os.Stderr)
		context.SetLogLevel("info")
	}()

	rt := &fakeRuntime{handle: fakeHandle{out: iotest.ErrReader(errors.New("broken pipe"))}}
	out := &bytes.Buffer{}
	o := NewRunner(rt, nil, WithConsole(out)).Run(context.Background(), api.Job{Name: "build", Image: "alpine", Script: []string{"make"}})

	// The process outcome is kept whatever happened to its output
	assert.Equal(t, api.Success(), o)
	assert.Equal(t, "[build] SUCCESS\n", out.String())
	assert.Contains(t, logs.String(), "cannot read job output")
	assert.Contains(t, logs.String(), "cannot drain job output")
}

func TestConsole(t *testing.T) {
	out := &bytes.Buffer{}
	c := NewConsole(out)
	c.Output("a", "line")
	c.Status("a", "SUCCESS")
	assert.Equal(t, "[a] | line\n[a] SUCCESS\n", out.String())
}

func readFile(path string) (string, error) {
	data, err := ioutil.ReadFile(path)
	return string(data), err
}
