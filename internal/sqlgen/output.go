package sqlgen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/sqlexpr"
)

// rowPasses is "<check> = 1" against the row-level eligibility table.
func rowPasses(checks []core.Check) sqlexpr.Expr {
	terms := make([]sqlexpr.Expr, len(checks))
	for i, ch := range checks {
		terms[i] = sqlexpr.Eq(sqlexpr.Ident(ch.Name), sqlexpr.Int(1))
	}
	return sqlexpr.And(terms...)
}

// ChannelEligibility returns the CTAS of the rows a channel may contact: every
// main check passes, every channel BA check passes and at least one other
// template of the channel passes completely. template_id names the first such
// template in document order; a channel with only BA reports "BA".
func (c *Constructor) ChannelEligibility(channel string) (Statement, error) {
	table, ok := c.channelTables[channel]
	if !ok {
		return Statement{}, fmt.Errorf("unknown channel %q", channel)
	}

	base := append(c.conds.Select(core.MainChannel, core.BaseTemplate), c.conds.Select(channel, core.BaseTemplate)...)
	where := []sqlexpr.Expr{rowPasses(base)}

	var (
		whens []sqlexpr.When
		anyOf []sqlexpr.Expr
	)
	for _, tmpl := range c.conds.Templates(channel) {
		if tmpl == core.BaseTemplate {
			continue
		}
		cond := rowPasses(c.conds.Select(channel, tmpl))
		whens = append(whens, sqlexpr.When{Cond: cond, Then: sqlexpr.String(tmpl)})
		anyOf = append(anyOf, cond)
	}

	var templateID sqlexpr.Expr = sqlexpr.String(core.BaseTemplate)
	if len(whens) > 0 {
		templateID = sqlexpr.Case(whens, nil)
		where = append(where, sqlexpr.Or(anyOf...))
	}

	idCols := c.identifierColumns()
	cols := make([]string, 0, len(idCols)+1)
	index := make([]string, 0, len(idCols))
	for _, col := range idCols {
		name := c.column(col.Column)
		cols = append(cols, name)
		index = append(index, name)
	}
	cols = append(cols, sqlexpr.RenderColumn(sqlexpr.Column{Expr: templateID, As: ColTemplateID}))

	sql := fmt.Sprintf("SELECT DISTINCT\n    %s\nFROM %s\nWHERE %s",
		strings.Join(cols, ",\n    "),
		c.eligibilityTable,
		sqlexpr.Render(sqlexpr.And(where...)))

	return Statement{
		Stage:      core.StageChannel,
		Table:      table,
		SQL:        c.dialect.CreateTableAs(table, sql, index),
		Statistics: c.dialect.CollectStatistics(table, index),
		Channel:    channel,
	}, nil
}

// OutputQuery substitutes the channel eligibility table into the channel's
// extraction query.
func (c *Constructor) OutputQuery(inst core.OutputInstruction) (Statement, error) {
	table, ok := c.channelTables[inst.Channel]
	if !ok {
		return Statement{}, fmt.Errorf("channel %q has no conditions", inst.Channel)
	}
	if !strings.Contains(inst.SQL, core.EligibilityPlaceholder) {
		return Statement{}, fmt.Errorf("query for channel %q does not reference %s", inst.Channel, core.EligibilityPlaceholder)
	}
	return Statement{
		Stage:   core.StageExtract,
		SQL:     strings.TrimRight(strings.TrimSpace(strings.ReplaceAll(inst.SQL, core.EligibilityPlaceholder, table)), ";"),
		Channel: inst.Channel,
	}, nil
}

// Plan returns every statement of a run in execution order, for dry runs.
// Channel statements are included for the given channels only.
func (c *Constructor) Plan(channels []string) ([]Statement, error) {
	stmts := append([]Statement(nil), c.WorkTables()...)
	stmts = append(stmts, c.Eligibility())
	for _, id := range c.identifiers {
		stmts = append(stmts, c.IdentifierDetails(id), c.StartingPopulation(id))
		for i := 0; i < c.conds.Len(); i++ {
			stmts = append(stmts, c.ConditionMetrics(id, i))
		}
		stmts = append(stmts, c.EligiblePopulation(id))
	}
	for _, ch := range channels {
		stmt, err := c.ChannelEligibility(ch)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}
