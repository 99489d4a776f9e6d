package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/waterfall/internal/cli/output"
	"github.com/leapstack-labs/waterfall/internal/engine"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	SkipOutput bool
	KeepTables bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the eligibility waterfall and write channel files",
		Long: `Build the eligibility table, compute the waterfall for every unique
identifier set, write the report workbook and extract one file per configured
output channel.

Generated tables are dropped when the run ends, also when it fails.
Use --keep-tables to inspect them; they remain recorded for 'waterfall cleanup'.`,
		Example: `  # Full run
  waterfall run

  # Waterfall report only
  waterfall run --skip-output

  # Against the prod environment, keeping generated tables
  waterfall run -t prod --keep-tables

  # Machine readable result
  waterfall run --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipOutput, "skip-output", false, "Stop after the waterfall report")
	cmd.Flags().BoolVar(&opts.KeepTables, "keep-tables", false, "Do not drop generated tables")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	start := time.Now()
	res, runErr := cc.Engine.Run(cmd.Context(), engine.RunOptions{
		SkipOutput: opts.SkipOutput,
		KeepTables: opts.KeepTables,
	})
	if res == nil {
		return runErr
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(runOutput(cc.Engine.Definition().Campaign, res, runErr)); err != nil {
			return err
		}
		return runErr
	}

	renderReport(r, res.Report)
	renderChannels(r, res)

	if res.ReportPath != "" {
		r.KeyValue("Report", res.ReportPath)
	}
	if res.RunID != "" {
		r.KeyValue("Run", res.RunID)
	}
	if len(res.KeptTables) > 0 {
		r.Warning(fmt.Sprintf("kept %d generated tables; drop them with 'waterfall cleanup --run %s'", len(res.KeptTables), res.RunID))
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	if runErr != nil {
		r.Error(fmt.Sprintf("%s finished with errors in %s", runStatus(res, runErr), elapsed))
		return runErr
	}
	r.Success(fmt.Sprintf("Completed in %s", elapsed))
	return nil
}

func renderChannels(r *output.Renderer, res *engine.RunResult) {
	if len(res.Outputs) == 0 {
		return
	}
	r.Header(2, "Channel files")
	for _, o := range res.Outputs {
		if o.Err != nil {
			r.StatusLine(o.Channel, "failed", o.Err.Error())
			continue
		}
		r.StatusLine(o.Channel, "success", fmt.Sprintf("%s rows → %s", r.Number(o.Rows), o.Path))
	}
	r.Println("")
}

// runStatus mirrors the status recorded in the state store.
func runStatus(res *engine.RunResult, err error) core.RunStatus {
	switch {
	case err == nil:
		return core.RunStatusCompleted
	case res != nil && res.Report != nil:
		return core.RunStatusPartial
	default:
		return core.RunStatusFailed
	}
}

func runOutput(c core.Campaign, res *engine.RunResult, err error) output.RunOutput {
	out := output.RunOutput{
		RunID:      res.RunID,
		Status:     string(runStatus(res, err)),
		Campaign:   c,
		ReportPath: res.ReportPath,
		KeptTables: res.KeptTables,
	}
	if res.Report != nil {
		out.Identifiers = res.Report.Identifiers
	}
	for _, o := range res.Outputs {
		ch := output.ChannelOutput{Channel: o.Channel, Path: o.Path, Rows: o.Rows}
		if o.Err != nil {
			ch.Error = o.Err.Error()
			ch.Path = ""
		}
		out.Channels = append(out.Channels, ch)
	}
	out.Errors = errorLines(err)
	return out
}

// errorLines splits a joined error, or the issues of a config error, into
// one line per error.
func errorLines(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, errorLines(e)...)
		}
		return lines
	}
	return []string{err.Error()}
}
