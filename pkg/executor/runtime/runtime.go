// Package runtime launches job containers and reports how they terminated.
package runtime

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

const (
	// MountPath is where the workspace is mounted inside job containers.
	MountPath = "/workspace"

	// LabelRunID is the container label holding the run ID.
	LabelRunID = "ferry.run-id"
	// LabelJob is the container label holding the job name.
	LabelJob = "ferry.job"
)

// Kind designates a Runtime implementation.
type Kind string

const (
	// KindDockerCLI runs containers with the docker command line.
	KindDockerCLI Kind = "docker"
	// KindDockerAPI runs containers through the docker engine API.
	KindDockerAPI Kind = "docker-api"
	// KindShell runs scripts directly on the host, inside the workspace.
	KindShell Kind = "shell"
)

// Runtime starts job processes.
type Runtime interface {
	// Start launches the given command. The returned handle must be waited on.
	Start(ctx context.Context, spec Spec) (Handle, error)
}

// Spec describes one container invocation.
type Spec struct {
	// RunID and Job are used to name and label the container.
	RunID string
	Job   string
	Image string
	// Command is a single shell command, run with sh -c.
	Command string
	// Workspace is the host directory mounted at MountPath and used as working directory.
	Workspace string
	Env       map[string]string
}

// Handle represents a started process.
type Handle interface {
	// Output returns the combined stdout and stderr stream. It reaches EOF once the process is gone.
	Output() io.Reader

	// Wait blocks until the process terminates.
	// A non nil error means the process could not be supervised; Exit is then meaningless.
	Wait() (Exit, error)
}

// Exit is the termination status of a process.
type Exit struct {
	Code int
	// Signal is the number of the signal that killed the process, 0 if it exited normally.
	Signal int
}

// Signaled returns true if the process was killed by a signal.
func (e Exit) Signaled() bool {
	return e.Signal != 0
}

func (e Exit) String() string {
	if e.Signaled() {
		return fmt.Sprintf("signal %d", e.Signal)
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// Config is the configuration needed to build a Runtime.
type Config struct {
	Kind Kind
	// DockerBinary is the docker executable used by the docker runtime.
	DockerBinary string
}

// New returns the Runtime designated by the config.
func New(cfg Config) (Runtime, error) {
	switch cfg.Kind {
	case KindDockerCLI, "":
		return NewDockerCLI(cfg.DockerBinary), nil
	case KindDockerAPI:
		return NewDockerAPI()
	case KindShell:
		return NewShell(), nil
	default:
		return nil, errors.Errorf("unknown runtime %s", cfg.Kind)
	}
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// containerName returns a docker compatible container name for the job of the run.
// The hash of the job name keeps names distinct when sanitizing makes them collide.
func containerName(spec Spec) string {
	sum := sha1.Sum([]byte(spec.Job))
	name := "ferry-" + invalidNameChars.ReplaceAllString(spec.Job, "-") + "-" + hex.EncodeToString(sum[:])[:6]
	if spec.RunID != "" {
		id := spec.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		name += "-" + id
	}
	return strings.ToLower(name)
}

func labels(spec Spec) map[string]string {
	return map[string]string{
		LabelRunID: spec.RunID,
		LabelJob:   spec.Job,
	}
}

func envList(m map[string]string) []string {
	var env []string
	for k, v := range m {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
