package commands

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/waterfall/internal/cli/output"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long:  `List runs recorded in the state database, newest first.`,
		Example: `  waterfall runs
  waterfall runs --limit 5 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cc.Engine.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}

	infos := make([]output.RunInfo, len(runs))
	for i, run := range runs {
		infos[i] = runInfo(run)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.RunsOutput{Runs: infos})
	}
	if len(infos) == 0 {
		r.Muted("No runs recorded in " + cc.Cfg.StatePath)
		return nil
	}

	r.Header(1, "Runs")
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{
			info.ID,
			info.OfferCode,
			info.Environment,
			r.StatusMark(info.Status) + " " + info.Status,
			info.StartedAt.Local().Format(time.DateTime),
			info.Duration,
			firstLine(info.Error),
		}
	}
	r.Table([]string{"Run", "Offer", "Environment", "Status", "Started", "Duration", "Error"}, rows)
	return nil
}

func runInfo(run *core.Run) output.RunInfo {
	info := output.RunInfo{
		ID:          run.ID,
		OfferCode:   run.OfferCode,
		Environment: run.Environment,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
	if run.CompletedAt != nil {
		info.Duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}
	return info
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
