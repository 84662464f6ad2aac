package cmd

import (
	"time"

	"ferry/pkg/artifact"
	"ferry/pkg/broker"
	"ferry/pkg/executor/runtime"
	"ferry/pkg/util/config"

	"github.com/pkg/errors"
)

// Engine is the configuration of a pipeline run.
type Engine struct {
	// Workspace is the directory mounted in every job container.
	Workspace    string        `mapstructure:"workspace" env:"FERRY_WORKSPACE"`
	Runtime      runtime.Kind  `mapstructure:"runtime" env:"FERRY_RUNTIME"`
	DockerBinary string        `mapstructure:"docker_binary" env:"FERRY_DOCKER_BINARY"`
	MaxParallel  int           `mapstructure:"max_parallel" env:"FERRY_MAX_PARALLEL"`
	JobTimeout   time.Duration `mapstructure:"job_timeout" env:"FERRY_JOB_TIMEOUT"`
	// InheritArtifacts restores the archives of the needed jobs before each job runs.
	InheritArtifacts bool            `mapstructure:"inherit_artifacts" env:"FERRY_INHERIT_ARTIFACTS"`
	LogLevel         string          `mapstructure:"log_level" env:"FERRY_LOG_LEVEL"`
	Artifacts        artifact.Config `mapstructure:"artifacts"`
	Events           broker.Config   `mapstructure:"events"`
}

// DefaultEngine returns the configuration used when nothing is set.
func DefaultEngine() Engine {
	return Engine{
		Workspace: ".",
		Runtime:   runtime.KindDockerCLI,
		LogLevel:  "info",
		Artifacts: artifact.Config{
			Backend: artifact.BackendFilesystem,
			Root:    ".ferry/artifacts",
		},
	}
}

// LoadEngine reads the config file, if any, on top of the defaults. Environment variables take precedence.
func LoadEngine(path string) (Engine, error) {
	e := DefaultEngine()
	config.Reset()
	config.SetConfigFile(path)
	if err := config.ReadInConfig(); err != nil {
		return e, errors.Wrap(err, "cannot read configuration")
	}
	if err := config.Unmarshal("", &e); err != nil {
		return e, errors.Wrap(err, "cannot load configuration")
	}
	return e, nil
}

// RuntimeConfig returns the configuration of the container runtime.
func (e Engine) RuntimeConfig() runtime.Config {
	return runtime.Config{
		Kind:         e.Runtime,
		DockerBinary: e.DockerBinary,
	}
}
