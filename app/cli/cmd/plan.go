package cmd

import (
	"fmt"

	"ferry/pkg/api"
	"ferry/pkg/scheduler"
	"ferry/pkg/util/context"

	"github.com/spf13/cobra"
)

// NewPlanCommand returns a new instance of a ferry command
func NewPlanCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "plan <pipeline file>",
		Short: "print the execution layers of a pipeline without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := api.ParseFile(args[0])
			if err != nil {
				return err
			}
			plan, err := scheduler.Plan(context.Background(), spec)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, l := range plan {
				fmt.Fprintf(out, "layer %d: %s\n", i+1, scheduler.Describe(l))
			}
			return nil
		},
	}
	return command
}
