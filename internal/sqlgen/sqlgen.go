// Package sqlgen builds every SQL statement the waterfall runs.
//
// A Constructor is created once per run. It assigns generated table names for
// the work tables, the eligibility table, one details table per identifier
// set and one eligibility table per output channel, then renders statements
// against those names. Nothing here talks to a warehouse.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	"github.com/leapstack-labs/waterfall/pkg/sqlexpr"
)

// Metric column names returned by ConditionMetrics.
const (
	ColUniqueDrop      = "unique_drop"
	ColIncrementalDrop = "incremental_drop"
	ColRegain          = "regain"
	ColRemaining       = "remaining"
	ColSoleDrop        = "sole_drop"
	ColStarting        = "starting_population"
	ColEligible        = "eligible_population"
	ColTemplateID      = "template_id"
)

// suffixLen is the number of random characters appended to generated names.
const suffixLen = 10

// Statement is one rendered SQL statement with the context needed to report
// a failure.
type Statement struct {
	Stage string
	// Table is the table the statement creates; empty for plain queries.
	Table string
	SQL   string
	// Statistics is run after a successful create; may be empty.
	Statistics string

	Identifier string
	Condition  string
	Channel    string
}

// Error wraps err in a *core.QueryError carrying the statement context.
func (s Statement) Error(err error) error {
	return &core.QueryError{
		Stage:      s.Stage,
		Identifier: s.Identifier,
		Condition:  s.Condition,
		Channel:    s.Channel,
		Table:      s.Table,
		SQL:        s.SQL,
		Err:        err,
	}
}

// Options tunes a Constructor.
type Options struct {
	// WorkSchema holds every generated table. Empty uses the dialect default.
	WorkSchema string
	// Suffix returns the random part of generated names. Defaults to uuid entropy.
	Suffix func() string
}

// Constructor renders SQL for one campaign run.
type Constructor struct {
	conds       *core.Conditions
	tables      core.TableSet
	identifiers []core.Identifier
	campaign    core.Campaign
	dialect     *dialect.Dialect

	eligibilityTable string
	detailsTables    map[string]string
	channelTables    map[string]string
}

// New assigns generated names and returns a Constructor.
func New(conds *core.Conditions, tables *core.TableSet, identifiers []core.Identifier, campaign core.Campaign, d *dialect.Dialect, opts Options) (*Constructor, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	if conds == nil || tables == nil {
		return nil, fmt.Errorf("conditions and tables are required")
	}
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("at least one identifier is required")
	}
	suffix := opts.Suffix
	if suffix == nil {
		suffix = randomSuffix
	}

	c := &Constructor{
		conds:         conds,
		identifiers:   identifiers,
		campaign:      campaign,
		dialect:       d,
		detailsTables: make(map[string]string, len(identifiers)),
		channelTables: make(map[string]string),
	}
	name := func() string {
		return d.QualifiedName(opts.WorkSchema, strings.ToLower(campaign.Username)+"_"+suffix())
	}

	c.tables.Tables = append([]core.Table(nil), tables.Tables...)
	c.tables.WorkTables = append([]core.WorkTable(nil), tables.WorkTables...)
	for i := range c.tables.WorkTables {
		c.tables.WorkTables[i].TableName = name()
	}
	c.eligibilityTable = name()
	for _, id := range identifiers {
		c.detailsTables[id.Key] = name()
	}
	for _, ch := range conds.Channels() {
		if ch != core.MainChannel {
			c.channelTables[ch] = name()
		}
	}
	return c, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}

// Conditions returns the ordered conditions.
func (c *Constructor) Conditions() *core.Conditions { return c.conds }

// Identifiers returns the identifier sets.
func (c *Constructor) Identifiers() []core.Identifier { return c.identifiers }

// Campaign returns the run metadata.
func (c *Constructor) Campaign() core.Campaign { return c.campaign }

// Dialect returns the dialect statements are rendered for.
func (c *Constructor) Dialect() *dialect.Dialect { return c.dialect }

// EligibilityTable returns the generated eligibility table name.
func (c *Constructor) EligibilityTable() string { return c.eligibilityTable }

// DetailsTable returns the generated details table of an identifier.
func (c *Constructor) DetailsTable(id core.Identifier) string { return c.detailsTables[id.Key] }

// ChannelTable returns the generated eligibility table of a channel.
func (c *Constructor) ChannelTable(channel string) (string, bool) {
	name, ok := c.channelTables[channel]
	return name, ok
}

// OutputChannels returns the channels that can be extracted, in document order.
func (c *Constructor) OutputChannels() []string {
	var out []string
	for _, ch := range c.conds.Channels() {
		if ch != core.MainChannel {
			out = append(out, ch)
		}
	}
	return out
}

// WorkTables returns the CTAS statements for the user work tables.
func (c *Constructor) WorkTables() []Statement {
	stmts := make([]Statement, 0, len(c.tables.WorkTables))
	for _, wt := range c.tables.WorkTables {
		index := splitList(wt.UniqueIndex)
		stmts = append(stmts, Statement{
			Stage:      core.StageWorkTable,
			Table:      wt.TableName,
			SQL:        c.dialect.CreateTableAs(wt.TableName, wt.SQL, index),
			Statistics: c.dialect.CollectStatistics(wt.TableName, index),
		})
	}
	return stmts
}

// identifierColumns returns the union of identifier columns, first use wins.
func (c *Constructor) identifierColumns() []core.IdentifierColumn {
	var out []core.IdentifierColumn
	seen := make(map[string]bool)
	for _, id := range c.identifiers {
		for _, col := range id.Columns {
			if !seen[col.Column] {
				seen[col.Column] = true
				out = append(out, col)
			}
		}
	}
	return out
}

func (c *Constructor) column(name string) string {
	return c.dialect.QuoteIdentifierIfNeeded(name)
}

// Eligibility returns the CTAS for the eligibility table: identifier columns
// plus one 0/1 flag column per condition.
func (c *Constructor) Eligibility() Statement {
	idCols := c.identifierColumns()
	cols := make([]string, 0, len(idCols)+c.conds.Len())
	index := make([]string, 0, len(idCols))
	for _, col := range idCols {
		cols = append(cols, col.Qualified())
		index = append(index, c.column(col.Column))
	}
	for _, chk := range c.conds.All() {
		cols = append(cols, sqlexpr.RenderColumn(sqlexpr.Column{
			Expr: sqlexpr.Flag(sqlexpr.Raw(chk.SQL)),
			As:   chk.Name,
		}))
	}

	var b strings.Builder
	b.WriteString("SELECT\n    ")
	b.WriteString(strings.Join(cols, ",\n    "))
	b.WriteString("\n")
	b.WriteString(c.fromClause())

	return Statement{
		Stage:      core.StageEligibility,
		Table:      c.eligibilityTable,
		SQL:        c.dialect.CreateTableAs(c.eligibilityTable, b.String(), index),
		Statistics: c.dialect.CollectStatistics(c.eligibilityTable, index),
	}
}

type source struct {
	name, joinType, alias, on, where string
}

// fromClause renders FROM, joins and WHERE. The single FROM entry comes first,
// then tables, then work tables, each in document order.
func (c *Constructor) fromClause() string {
	var sources []source
	for _, t := range c.tables.Tables {
		sources = append(sources, source{t.Name, t.JoinType, t.Alias, t.JoinConditions, t.WhereConditions})
	}
	for _, wt := range c.tables.WorkTables {
		sources = append(sources, source{wt.TableName, wt.JoinType, wt.Alias, wt.JoinConditions, wt.WhereConditions})
	}
	for i, s := range sources {
		if core.IsFrom(s.joinType) && i != 0 {
			sources = append([]source{s}, append(sources[:i:i], sources[i+1:]...)...)
			break
		}
	}

	var (
		b      strings.Builder
		wheres []sqlexpr.Expr
	)
	for _, s := range sources {
		join := core.NormalizeJoin(s.joinType)
		fmt.Fprintf(&b, "%s %s AS %s", join, s.name, s.alias)
		if !core.IsFrom(join) && !core.IsCrossJoin(join) {
			fmt.Fprintf(&b, " ON %s", strings.TrimSpace(s.on))
		}
		b.WriteString("\n")
		if strings.TrimSpace(s.where) != "" {
			wheres = append(wheres, sqlexpr.Raw(s.where))
		}
	}
	if len(wheres) > 0 {
		b.WriteString("WHERE ")
		b.WriteString(renderWhere(wheres))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderWhere always parenthesizes user fragments, even a single one.
func renderWhere(terms []sqlexpr.Expr) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = "(" + sqlexpr.Render(t) + ")"
	}
	return strings.Join(parts, "\nAND ")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
