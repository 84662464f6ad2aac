package cmd

import (
	gocontext "context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ferry/app/cli/cmd/common"
	"ferry/pkg/api"
	"ferry/pkg/artifact"
	"ferry/pkg/broker"
	"ferry/pkg/events"
	"ferry/pkg/executor"
	"ferry/pkg/executor/runtime"
	"ferry/pkg/scheduler"
	"ferry/pkg/store"
	"ferry/pkg/util/context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type runOpts struct {
	workspace        string        // --workspace
	archiveRoot      string        // --archive-root
	runtime          string        // --runtime
	maxParallel      int           // --max-parallel
	jobTimeout       time.Duration // --job-timeout
	inheritArtifacts bool          // --inherit-artifacts
	noColor          bool          // --no-color
}

// NewRunCommand returns a new instance of a ferry command
func NewRunCommand(engine *Engine) *cobra.Command {
	var opts runOpts
	command := &cobra.Command{
		Use:   "run <pipeline file>",
		Short: "run a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := opts.apply(cmd, *engine)

			ctx, stop := signal.NotifyContext(gocontext.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			state, err := run(context.FromContext(ctx), args[0], e, cmd)
			if state != nil {
				common.PrintRun(cmd.OutOrStdout(), *state, common.PrintOptions{Color: !opts.noColor})
			}
			return err
		},
	}
	command.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "directory mounted in every job container")
	command.Flags().StringVar(&opts.archiveRoot, "archive-root", "", "directory job artifacts are archived to")
	command.Flags().StringVar(&opts.runtime, "runtime", "", "container runtime (docker, docker-api, shell)")
	command.Flags().IntVar(&opts.maxParallel, "max-parallel", 0, "maximum number of jobs running at the same time, 0 for no limit")
	command.Flags().DurationVar(&opts.jobTimeout, "job-timeout", 0, "maximum duration of each job, 0 for no limit")
	command.Flags().BoolVar(&opts.inheritArtifacts, "inherit-artifacts", false, "restore the artifacts of the needed jobs before each job")
	command.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colors in the summary")
	return command
}

// apply overrides the engine configuration with the flags set on the command line.
func (o runOpts) apply(cmd *cobra.Command, e Engine) Engine {
	flags := cmd.Flags()
	if flags.Changed("workspace") {
		e.Workspace = o.workspace
	}
	if flags.Changed("archive-root") {
		e.Artifacts.Root = o.archiveRoot
	}
	if flags.Changed("runtime") {
		e.Runtime = runtime.Kind(o.runtime)
	}
	if flags.Changed("max-parallel") {
		e.MaxParallel = o.maxParallel
	}
	if flags.Changed("job-timeout") {
		e.JobTimeout = o.jobTimeout
	}
	if flags.Changed("inherit-artifacts") {
		e.InheritArtifacts = o.inheritArtifacts
	}
	return e
}

// run executes the pipeline file. The returned state is nil if the run could not start.
func run(ctx context.Context, path string, e Engine, cmd *cobra.Command) (*api.RunState, error) {
	spec, err := api.ParseFile(path)
	if err != nil {
		return nil, err
	}
	plan, err := scheduler.Plan(ctx, spec)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(e.RuntimeConfig())
	if err != nil {
		return nil, errors.Wrap(err, "cannot create container runtime")
	}
	runID := uuid.New().String()
	ctx = context.WithRunID(ctx, runID)
	arts, err := artifact.New(ctx, e.Artifacts, e.Workspace, runID)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create artifact store")
	}

	s := store.NewInMemoryStore()
	handlers := []events.Handler{store.Recorder(s)}
	if e.Events.Enabled() {
		b, err := broker.New(ctx, e.Events)
		if err != nil {
			return nil, errors.Wrap(err, "cannot create event broker")
		}
		defer b.Close()
		handlers = append(handlers, broker.Handler(b))
	}

	runner := executor.NewRunner(rt, arts,
		executor.WithConsole(cmd.OutOrStdout()),
		executor.WithWorkspace(e.Workspace),
		executor.WithJobTimeout(e.JobTimeout),
		executor.WithInheritArtifacts(e.InheritArtifacts),
	)
	coord := executor.NewCoordinator(runner,
		executor.WithRunID(runID),
		executor.WithMaxParallel(e.MaxParallel),
		executor.WithHandlers(handlers...),
	)
	_, runErr := coord.Run(ctx, plan)

	state, err := s.RunState(ctx, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get state of run %s", runID)
	}
	if runErr != nil {
		return &state, errors.Wrap(runErr, "run aborted")
	}
	return &state, nil
}
