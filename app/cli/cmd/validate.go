package cmd

import (
	"fmt"

	"ferry/pkg/api"
	"ferry/pkg/scheduler"
	"ferry/pkg/util/context"

	"github.com/spf13/cobra"
)

// NewValidateCommand returns a new instance of a ferry command
func NewValidateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "validate <pipeline file>",
		Short: "check a pipeline file",
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
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d jobs in %d layers (%s mode)\n", args[0], plan.Len(), len(plan), scheduler.ModeOf(spec))
			return nil
		},
	}
	return command
}
