package runtime

import (
	gocontext "context"
	"io"
	"path/filepath"

	"ferry/pkg/util/context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
)

// DockerAPI runs job containers through the docker engine API.
// Docker only reports exit codes, a container killed by a signal is reported with code 128+n.
type DockerAPI struct {
	cli *client.Client
}

// NewDockerAPI returns a Runtime using the docker engine designated by the environment (DOCKER_HOST, ...).
func NewDockerAPI() (*DockerAPI, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "cannot create docker client")
	}
	return &DockerAPI{cli: cli}, nil
}

// Start implements Runtime.Start.
func (d *DockerAPI) Start(ctx context.Context, spec Spec) (Handle, error) {
	if err := d.ensureImage(ctx, spec.Image); err != nil {
		return nil, err
	}
	ws, err := filepath.Abs(spec.Workspace)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve workspace %s", spec.Workspace)
	}

	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:      spec.Image,
		Cmd:        []string{"sh", "-c", spec.Command},
		WorkingDir: MountPath,
		Labels:     labels(spec),
		Env:        envList(spec.Env),
	}, &container.HostConfig{
		Binds: []string{ws + ":" + MountPath},
	}, nil, nil, containerName(spec))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create container for image %s", spec.Image)
	}
	ctx.Logger().Tracef("created container %s", resp.ID)

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		d.remove(ctx, resp.ID)
		return nil, errors.Wrapf(err, "cannot start container %s", resp.ID)
	}

	logs, err := d.cli.ContainerLogs(ctx, resp.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		d.remove(ctx, resp.ID)
		return nil, errors.Wrapf(err, "cannot stream logs of container %s", resp.ID)
	}

	pr, pw := io.Pipe()
	h := &containerHandle{
		out:  pr,
		done: make(chan struct{}),
	}
	logsDone := make(chan struct{})
	go func() {
		// Logs are multiplexed as the container has no TTY
		_, err := stdcopy.StdCopy(pw, pw, logs)
		logs.Close()
		pw.CloseWithError(err)
		close(logsDone)
	}()
	go func() {
		h.exit, h.err = d.wait(ctx, resp.ID, logsDone)
		d.remove(ctx, resp.ID)
		pw.Close()
		close(h.done)
	}()
	return h, nil
}

func (d *DockerAPI) wait(ctx context.Context, id string, logsDone chan struct{}) (Exit, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return Exit{}, errors.Wrap(ctx.Err(), "container interrupted")
		}
		return Exit{}, errors.Wrapf(err, "cannot wait for container %s", id)
	case status := <-statusCh:
		if status.Error != nil {
			return Exit{}, errors.Errorf("cannot wait for container %s: %s", id, status.Error.Message)
		}
		select {
		case <-logsDone:
		case <-ctx.Done():
		}
		return Exit{Code: int(status.StatusCode)}, nil
	}
}

// remove force removes the container, also when ctx is done.
func (d *DockerAPI) remove(ctx context.Context, id string) {
	rmCtx, cancel := gocontext.WithTimeout(gocontext.Background(), removeTimeout)
	defer cancel()
	if err := d.cli.ContainerRemove(rmCtx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		ctx.Logger().Warnf("cannot remove container %s: %s", id, err)
	}
}

// ensureImage pulls the image if it is not available locally.
func (d *DockerAPI) ensureImage(ctx context.Context, image string) error {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return errors.Wrapf(err, "cannot inspect image %s", image)
	}
	ctx.Logger().Infof("pulling image %s", image)
	reader, err := d.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return errors.Wrapf(err, "cannot pull image %s", image)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return errors.Wrapf(err, "cannot pull image %s", image)
	}
	return nil
}

type containerHandle struct {
	out  *io.PipeReader
	done chan struct{}
	exit Exit
	err  error
}

func (h *containerHandle) Output() io.Reader {
	return h.out
}

func (h *containerHandle) Wait() (Exit, error) {
	<-h.done
	return h.exit, h.err
}
