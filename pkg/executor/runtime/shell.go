package runtime

import (
	"ferry/pkg/util/context"
)

// Shell runs job scripts directly on the host with sh, in the workspace directory.
// The image is ignored.
type Shell struct {
	// Path is the shell executable, "sh" by default.
	Path string
}

// NewShell returns a Runtime running scripts on the host.
func NewShell() *Shell {
	return &Shell{Path: "sh"}
}

// Start implements Runtime.Start.
func (s *Shell) Start(ctx context.Context, spec Spec) (Handle, error) {
	ctx.Logger().Debugf("running job %s on the host (image %s ignored)", spec.Job, spec.Image)
	env := map[string]string{
		"FERRY_JOB":       spec.Job,
		"FERRY_RUN_ID":    spec.RunID,
		"FERRY_WORKSPACE": spec.Workspace,
	}
	for k, v := range spec.Env {
		env[k] = v
	}
	return startProcess(ctx, spec.Workspace, env, nil, s.Path, "-c", spec.Command)
}
