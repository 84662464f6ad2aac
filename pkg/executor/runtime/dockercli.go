package runtime

import (
	gocontext "context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

const removeTimeout = 30 * time.Second

// DockerCLI runs job containers with the docker command line, one `docker run` process per job.
type DockerCLI struct {
	Binary string
}

// NewDockerCLI returns a Runtime using the given docker binary ("docker" if empty).
func NewDockerCLI(binary string) *DockerCLI {
	if binary == "" {
		binary = "docker"
	}
	return &DockerCLI{Binary: binary}
}

// Args returns the arguments of the docker run command for the given spec.
func (d *DockerCLI) Args(spec Spec) ([]string, error) {
	ws, err := filepath.Abs(spec.Workspace)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve workspace %s", spec.Workspace)
	}
	args := []string{
		"run", "--rm",
		"--name", containerName(spec),
		"-v", fmt.Sprintf("%s:%s", ws, MountPath),
		"-w", MountPath,
	}
	for k, v := range labels(spec) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}
	for _, e := range envList(spec.Env) {
		args = append(args, "-e", e)
	}
	return append(args, spec.Image, "sh", "-c", spec.Command), nil
}

// Start implements Runtime.Start.
func (d *DockerCLI) Start(ctx context.Context, spec Spec) (Handle, error) {
	args, err := d.Args(spec)
	if err != nil {
		return nil, err
	}
	ctx.Logger().Debugf("running %s %v", d.Binary, args)
	name := containerName(spec)
	// Killing the client does not stop the container, remove it before.
	cancel := func(cmd *exec.Cmd) error {
		rmCtx, done := gocontext.WithTimeout(gocontext.Background(), removeTimeout)
		defer done()
		if out, err := exec.CommandContext(rmCtx, d.Binary, "rm", "-f", name).CombinedOutput(); err != nil {
			ctx.Logger().Warnf("cannot remove container %s: %s: %s", name, err, out)
		}
		return cmd.Process.Kill()
	}
	return startProcess(ctx, "", nil, cancel, d.Binary, args...)
}
