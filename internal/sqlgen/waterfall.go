package sqlgen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/sqlexpr"
)

// DetailColumn is the details-table column for a condition.
func DetailColumn(check core.Check) string {
	return "max_" + check.Name
}

// passes is "max_<check> = 1": at least one of the identifier's rows passes.
func passes(check core.Check) sqlexpr.Expr {
	return sqlexpr.Eq(sqlexpr.Ident(DetailColumn(check)), sqlexpr.Int(1))
}

func fails(check core.Check) sqlexpr.Expr {
	return sqlexpr.Eq(sqlexpr.Ident(DetailColumn(check)), sqlexpr.Int(0))
}

// outcome is how a check takes part in an eligibility rule.
type outcome int

const (
	assumed outcome = iota // not evaluated yet, counts as passing
	tested                 // its details column decides
	failed                 // forced to fail
)

// rule returns the eligibility rule over the details table. An identifier is
// eligible when every main check passes and, if the campaign has channels,
// at least one channel admits it: the channel's BA checks pass and, when the
// channel has other templates, every check of one of them passes. This is the
// union of the channel eligibility tables.
func (c *Constructor) rule(state func(pos int) outcome) sqlexpr.Expr {
	all := func(checks []core.Check) sqlexpr.Expr {
		terms := make([]sqlexpr.Expr, 0, len(checks))
		for _, ch := range checks {
			switch state(c.conds.Position(ch.Name)) {
			case tested:
				terms = append(terms, passes(ch))
			case failed:
				return sqlexpr.Or()
			}
		}
		return sqlexpr.And(terms...)
	}

	terms := []sqlexpr.Expr{all(c.conds.Select(core.MainChannel, core.BaseTemplate))}
	var channels []sqlexpr.Expr
	for _, ch := range c.OutputChannels() {
		admit := []sqlexpr.Expr{all(c.conds.Select(ch, core.BaseTemplate))}
		var templates []sqlexpr.Expr
		for _, tmpl := range c.conds.Templates(ch) {
			if tmpl != core.BaseTemplate {
				templates = append(templates, all(c.conds.Select(ch, tmpl)))
			}
		}
		if len(templates) > 0 {
			admit = append(admit, sqlexpr.Or(templates...))
		}
		channels = append(channels, sqlexpr.And(admit...))
	}
	if len(channels) > 0 {
		terms = append(terms, sqlexpr.Or(channels...))
	}
	return sqlexpr.And(terms...)
}

// upTo evaluates the checks before position n and assumes the rest.
func upTo(n int) func(int) outcome {
	return func(pos int) outcome {
		if pos < n {
			return tested
		}
		return assumed
	}
}

// with overrides the outcome of the check at position i.
func with(base func(int) outcome, i int, o outcome) func(int) outcome {
	return func(pos int) outcome {
		if pos == i {
			return o
		}
		return base(pos)
	}
}

// andNot is "a AND NOT b" for rules where b implies a; identical rules
// leave nothing.
func andNot(a, b sqlexpr.Expr) sqlexpr.Expr {
	if sqlexpr.Render(a) == sqlexpr.Render(b) {
		return sqlexpr.Or()
	}
	return sqlexpr.And(a, sqlexpr.Not(b))
}

// IdentifierDetails returns the CTAS collapsing the eligibility table to one
// row per identifier value, with MAX(flag) per condition. Rows whose
// identifier has a NULL part are not counted.
func (c *Constructor) IdentifierDetails(id core.Identifier) Statement {
	table := c.DetailsTable(id)
	keys := make([]string, len(id.Columns))
	notNull := make([]sqlexpr.Expr, len(id.Columns))
	for i, col := range id.Columns {
		keys[i] = c.column(col.Column)
		notNull[i] = sqlexpr.Compare(sqlexpr.Ident(keys[i]), "IS NOT", sqlexpr.Ident("NULL"))
	}

	cols := append([]string(nil), keys...)
	for _, chk := range c.conds.All() {
		cols = append(cols, sqlexpr.RenderColumn(sqlexpr.Column{
			Expr: sqlexpr.Max(sqlexpr.Ident(chk.Name)),
			As:   DetailColumn(chk),
		}))
	}

	sql := fmt.Sprintf("SELECT\n    %s\nFROM %s\nWHERE %s\nGROUP BY %s",
		strings.Join(cols, ",\n    "),
		c.eligibilityTable,
		sqlexpr.Render(sqlexpr.And(notNull...)),
		strings.Join(keys, ", "))

	return Statement{
		Stage:      core.StageDetails,
		Table:      table,
		SQL:        c.dialect.CreateTableAs(table, sql, keys),
		Statistics: c.dialect.CollectStatistics(table, keys),
		Identifier: id.Key,
	}
}

// StartingPopulation counts identifier values before any condition.
func (c *Constructor) StartingPopulation(id core.Identifier) Statement {
	return Statement{
		Stage:      core.StagePopulation,
		SQL:        fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s", ColStarting, c.DetailsTable(id)),
		Identifier: id.Key,
	}
}

// ConditionMetrics returns the query computing, for the i-th condition, the
// unique drop, incremental drop, regain, remaining and sole drop columns in
// one pass over the details table.
//
// Conditions are applied in order against the eligibility rule, with later
// conditions assumed to pass. A condition drops an identifier when evaluating
// it turns the rule false; an identifier failing a check of one template may
// still be kept by another template of the channel, and is then counted as
// regained rather than dropped.
func (c *Constructor) ConditionMetrics(id core.Identifier, i int) Statement {
	check := c.conds.At(i)
	n := c.conds.Len()

	before := c.rule(upTo(i))
	after := c.rule(upTo(i + 1))
	// identifiers still in before that evaluating the failed check removes
	dropped := andNot(before, c.rule(with(upTo(i), i, failed)))
	// identifiers that removing only this condition would add back
	sole := andNot(c.rule(with(upTo(n), i, assumed)), c.rule(with(upTo(n), i, failed)))

	cols := []sqlexpr.Column{
		{Expr: sqlexpr.Count(fails(check)), As: ColUniqueDrop},
		{Expr: sqlexpr.Count(sqlexpr.And(dropped, fails(check))), As: ColIncrementalDrop},
		{Expr: sqlexpr.Count(sqlexpr.And(sqlexpr.Not(dropped), fails(check))), As: ColRegain},
		{Expr: sqlexpr.Count(after), As: ColRemaining},
		{Expr: sqlexpr.Count(sqlexpr.And(sole, fails(check))), As: ColSoleDrop},
	}
	rendered := make([]string, len(cols))
	for j, col := range cols {
		rendered[j] = sqlexpr.RenderColumn(col)
	}

	return Statement{
		Stage:      core.StageCondition,
		SQL:        fmt.Sprintf("SELECT\n    %s\nFROM %s", strings.Join(rendered, ",\n    "), c.DetailsTable(id)),
		Identifier: id.Key,
		Condition:  check.Name,
	}
}

// EligiblePopulation counts identifier values satisfying the eligibility
// rule with every condition evaluated.
func (c *Constructor) EligiblePopulation(id core.Identifier) Statement {
	return Statement{
		Stage: core.StageEligible,
		SQL: fmt.Sprintf("SELECT %s AS %s FROM %s",
			sqlexpr.Render(sqlexpr.Count(c.rule(upTo(c.conds.Len())))), ColEligible, c.DetailsTable(id)),
		Identifier: id.Key,
	}
}
