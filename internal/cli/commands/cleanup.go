package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/waterfall/internal/cli/output"
)

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop generated tables left behind by earlier runs",
		Long: `Drop every generated table still recorded in the state database, for
example after 'waterfall run --keep-tables' or an interrupted run.`,
		Example: `  # Everything still pending
  waterfall cleanup

  # Tables of one run
  waterfall cleanup --run 3f2a...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd, runID)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Only drop tables of this run")
	return cmd
}

func runCleanup(cmd *cobra.Command, runID string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	dropped, dropErr := cc.Engine.Cleanup(cmd.Context(), runID)

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(output.CleanupOutput{Dropped: nonNil(dropped), Errors: errorLines(dropErr)}); err != nil {
			return err
		}
		return dropErr
	}

	for _, t := range dropped {
		r.StatusLine(t, "success", "dropped")
	}
	if dropErr != nil {
		return dropErr
	}
	if len(dropped) == 0 {
		r.Muted("Nothing to clean up")
		return nil
	}
	r.Success(fmt.Sprintf("Dropped %d tables", len(dropped)))
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
