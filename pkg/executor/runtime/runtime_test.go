package runtime

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"ferry/pkg/util/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, ctx context.Context, command string) (string, Exit, error) {
	t.Helper()
	h, err := NewShell().Start(ctx, Spec{Job: "job", Command: command, Workspace: t.TempDir()})
	require.NoError(t, err)
	out, err := ioutil.ReadAll(h.Output())
	require.NoError(t, err)
	exit, err := h.Wait()
	return string(out), exit, err
}

func TestShellExitCodes(t *testing.T) {
	out, exit, err := run(t, context.Background(), "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.Equal(t, Exit{}, exit)
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "err\n")

	_, exit, err = run(t, context.Background(), "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, exit.Code)
	assert.False(t, exit.Signaled())
}

func TestShellSignal(t *testing.T) {
	_, exit, err := run(t, context.Background(), "kill -9 $$")
	require.NoError(t, err)
	assert.True(t, exit.Signaled())
	assert.Equal(t, 9, exit.Signal)
	assert.Equal(t, "signal 9", exit.String())
}

func TestShellRunsInWorkspace(t *testing.T) {
	ws := t.TempDir()
	h, err := NewShell().Start(context.Background(), Spec{Job: "job", Command: "echo hello > out.txt; echo $FERRY_JOB", Workspace: ws})
	require.NoError(t, err)
	out, _ := ioutil.ReadAll(h.Output())
	_, err = h.Wait()
	require.NoError(t, err)
	assert.Equal(t, "job\n", string(out))
	data, err := ioutil.ReadFile(filepath.Join(ws, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestShellTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _, err := run(t, ctx, "sleep 10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.Less(t, int64(time.Since(start)), int64(waitDelay+time.Second))
}

func TestStartFailure(t *testing.T) {
	_, err := NewDockerCLI("/nonexistent/docker").Start(context.Background(), Spec{Job: "job", Image: "alpine", Command: "true", Workspace: t.TempDir()})
	require.Error(t, err)
}

func TestDockerCLIArgs(t *testing.T) {
	ws := t.TempDir()
	args, err := NewDockerCLI("").Args(Spec{RunID: "0123456789abcdef", Job: "Build Job", Image: "python:3.11", Command: "a && b", Workspace: ws})
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "--rm", "--name", containerName(Spec{RunID: "0123456789abcdef", Job: "Build Job"}), "-v", ws + ":/workspace", "-w", "/workspace"}, args[:8])
	assert.Regexp(t, `^ferry-build-job-[0-9a-f]{6}-01234567$`, args[3])
	assert.Equal(t, []string{"python:3.11", "sh", "-c", "a && b"}, args[len(args)-4:])
	assert.Contains(t, args, "ferry.job=Build Job")
}

func TestContainerNameIsUniquePerJob(t *testing.T) {
	names := make(map[string]string)
	for _, job := range []string{"a b", "a-b", "a/b", "A-B", "a_b"} {
		name := containerName(Spec{RunID: "run-1", Job: job})
		assert.Regexp(t, `^[a-z0-9][a-z0-9_.-]+$`, name)
		if other, exists := names[name]; exists {
			t.Errorf("jobs %q and %q share container name %s", job, other, name)
		}
		names[name] = job
	}
	assert.Equal(t, containerName(Spec{RunID: "run-1", Job: "a b"}), containerName(Spec{RunID: "run-1", Job: "a b"}))
}

func TestNew(t *testing.T) {
	rt, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &DockerCLI{}, rt)

	rt, err = New(Config{Kind: KindShell})
	require.NoError(t, err)
	assert.IsType(t, &Shell{}, rt)

	_, err = New(Config{Kind: "podman"})
	require.Error(t, err)
}
