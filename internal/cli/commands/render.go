package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/waterfall/internal/cli/output"
	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// stages lists the --stage values in execution order.
var stages = []string{
	core.StageWorkTable,
	core.StageEligibility,
	core.StageDetails,
	core.StagePopulation,
	core.StageCondition,
	core.StageEligible,
	core.StageChannel,
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var stageFilter []string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the SQL a run would execute",
		Long: `Render every statement of a run without connecting to the warehouse.

Generated table names carry fresh random suffixes on every invocation.

Output adapts to environment:
  - Terminal: Plain SQL separated by comments
  - Piped/Scripted: Markdown with code blocks`,
		Example: `  # Everything
  waterfall render

  # Only the eligibility table and the per-condition metrics
  waterfall render --stage eligibility --stage condition_metrics

  # Save as a script
  waterfall render --output text > run.sql`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, stageFilter)
		},
	}

	cmd.Flags().StringSliceVar(&stageFilter, "stage", nil, "Only render these stages ("+strings.Join(stages, ", ")+")")
	_ = cmd.RegisterFlagCompletionFunc("stage", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return stages, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRender(cmd *cobra.Command, stageFilter []string) error {
	for _, s := range stageFilter {
		if !slices.Contains(stages, s) {
			return fmt.Errorf("unknown stage %q (available: %s)", s, strings.Join(stages, ", "))
		}
	}

	cc, err := NewCommandContextWithoutState(cmd)
	if err != nil {
		return err
	}

	stmts, err := cc.Engine.Render()
	if err != nil {
		return err
	}
	if len(stageFilter) > 0 {
		stmts = slices.DeleteFunc(stmts, func(s sqlgen.Statement) bool {
			return !slices.Contains(stageFilter, s.Stage)
		})
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := output.RenderOutput{Statements: make([]output.StatementOutput, 0, len(stmts))}
		for _, s := range stmts {
			out.Statements = append(out.Statements, output.StatementOutput{
				Stage:      s.Stage,
				Identifier: s.Identifier,
				Condition:  s.Condition,
				Channel:    s.Channel,
				Table:      s.Table,
				SQL:        statementSQL(s),
			})
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("SQL for %s", cc.Engine.Definition().Campaign.OfferCode)))
		r.Println("")
		for _, s := range stmts {
			r.Println(output.FormatHeader(2, statementLabel(s)))
			r.Println("")
			r.Println(output.FormatCodeBlock("sql", statementSQL(s)))
			r.Println("")
		}
	default:
		for _, s := range stmts {
			r.Println("-- " + statementLabel(s))
			r.Println(statementSQL(s))
			r.Println("")
		}
	}
	return nil
}

// statementSQL returns the statement followed by its statistics refresh.
func statementSQL(s sqlgen.Statement) string {
	sql := strings.TrimRight(strings.TrimSpace(s.SQL), ";") + ";"
	if s.Statistics != "" {
		sql += "\n" + s.Statistics + ";"
	}
	return sql
}

func statementLabel(s sqlgen.Statement) string {
	parts := []string{s.Stage}
	for _, p := range []string{s.Identifier, s.Condition, s.Channel} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}
