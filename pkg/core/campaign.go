package core

import (
	"fmt"
	"slices"
	"strings"
)

// MainChannel is the channel whose checks apply to every output channel.
const MainChannel = "main"

// BaseTemplate is the template shared by every channel ("BA" in campaign documents).
const BaseTemplate = "BA"

// Campaign holds the metadata attached to every run and report.
type Campaign struct {
	OfferCode       string `koanf:"offer_code" validate:"required"`
	CampaignPlanner string `koanf:"campaign_planner" validate:"required"`
	Lead            string `koanf:"lead" validate:"required"`
	Username        string `koanf:"username" validate:"required"`
}

// Check is a single eligibility condition.
//
// Name is the flag column the condition materializes into the eligibility
// table and is unique across a campaign.
type Check struct {
	Channel     string
	Template    string
	Num         int
	Name        string
	SQL         string
	Description string
	Output      bool
}

// CheckName returns the flag column name for the num-th check of a template.
func CheckName(channel, template string, num int) string {
	return fmt.Sprintf("%s_%s_%d", channel, template, num)
}

// Label returns the description shown in reports, prefixed with the template.
func (c Check) Label() string {
	if c.Description == "" {
		return ""
	}
	return fmt.Sprintf("[%s] %s", c.Template, c.Description)
}

// Conditions is the ordered list of checks. Order is evaluation order.
type Conditions struct {
	checks []Check
	index  map[string]int
}

// NewConditions builds an ordered condition list. Names must be unique.
func NewConditions(checks []Check) (*Conditions, error) {
	c := &Conditions{
		checks: make([]Check, len(checks)),
		index:  make(map[string]int, len(checks)),
	}
	copy(c.checks, checks)
	for i, ch := range c.checks {
		if _, dup := c.index[ch.Name]; dup {
			return nil, fmt.Errorf("duplicate condition name %q", ch.Name)
		}
		c.index[ch.Name] = i
	}
	return c, nil
}

// Len returns the number of conditions.
func (c *Conditions) Len() int {
	if c == nil {
		return 0
	}
	return len(c.checks)
}

// At returns the i-th condition.
func (c *Conditions) At(i int) Check {
	return c.checks[i]
}

// All returns a copy of the ordered conditions.
func (c *Conditions) All() []Check {
	if c == nil {
		return nil
	}
	out := make([]Check, len(c.checks))
	copy(out, c.checks)
	return out
}

// Get looks up a condition by name.
func (c *Conditions) Get(name string) (Check, bool) {
	if c == nil {
		return Check{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Check{}, false
	}
	return c.checks[i], true
}

// Position returns the evaluation position of a condition, or -1.
func (c *Conditions) Position(name string) int {
	if c == nil {
		return -1
	}
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Channels returns channel names in document order.
func (c *Conditions) Channels() []string {
	var out []string
	seen := make(map[string]bool)
	for _, ch := range c.All() {
		if !seen[ch.Channel] {
			seen[ch.Channel] = true
			out = append(out, ch.Channel)
		}
	}
	return out
}

// Templates returns the templates of a channel in document order.
func (c *Conditions) Templates(channel string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ch := range c.All() {
		if ch.Channel == channel && !seen[ch.Template] {
			seen[ch.Template] = true
			out = append(out, ch.Template)
		}
	}
	return out
}

// Select returns the checks belonging to a channel and template.
func (c *Conditions) Select(channel, template string) []Check {
	var out []Check
	for _, ch := range c.All() {
		if ch.Channel == channel && ch.Template == template {
			out = append(out, ch)
		}
	}
	return out
}

// Reorder returns a copy with conditions in the given name order.
// Every existing name must appear exactly once.
func (c *Conditions) Reorder(names []string) (*Conditions, error) {
	if len(names) != c.Len() {
		return nil, fmt.Errorf("reorder needs %d names, got %d", c.Len(), len(names))
	}
	out := make([]Check, 0, len(names))
	for _, n := range names {
		ch, ok := c.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown condition %q", n)
		}
		out = append(out, ch)
	}
	return NewConditions(out)
}

// Join types accepted in table documents.
const (
	JoinFrom  = "FROM"
	JoinInner = "INNER JOIN"
	JoinLeft  = "LEFT JOIN"
	JoinRight = "RIGHT JOIN"
	JoinFull  = "FULL OUTER JOIN"
	JoinCross = "CROSS JOIN"
	JoinPlain = "JOIN"
)

var joinTypes = []string{JoinFrom, JoinInner, JoinLeft, JoinRight, JoinFull, JoinCross, JoinPlain, "LEFT OUTER JOIN", "RIGHT OUTER JOIN", "FULL JOIN"}

// NormalizeJoin upper-cases a join type and collapses inner whitespace.
func NormalizeJoin(joinType string) string {
	return strings.ToUpper(strings.Join(strings.Fields(joinType), " "))
}

// IsValidJoin reports whether a join type is accepted in table documents.
func IsValidJoin(joinType string) bool {
	return slices.Contains(joinTypes, NormalizeJoin(joinType))
}

// IsFrom reports whether a join type opens the FROM clause.
func IsFrom(joinType string) bool {
	return NormalizeJoin(joinType) == JoinFrom
}

// IsCrossJoin reports whether a join type takes no ON clause.
func IsCrossJoin(joinType string) bool {
	return NormalizeJoin(joinType) == JoinCross
}

// Table is a source table joined into the eligibility query.
type Table struct {
	Name            string `yaml:"table_name"`
	JoinType        string `yaml:"join_type"`
	Alias           string `yaml:"alias"`
	JoinConditions  string `yaml:"join_conditions"`
	WhereConditions string `yaml:"where_conditions"`
}

// WorkTable is a user query materialized into a generated table before the
// eligibility query runs. TableName is assigned by the SQL constructor.
type WorkTable struct {
	SQL             string `yaml:"sql"`
	JoinType        string `yaml:"join_type"`
	Alias           string `yaml:"alias"`
	JoinConditions  string `yaml:"join_conditions"`
	WhereConditions string `yaml:"where_conditions"`
	UniqueIndex     string `yaml:"unique_index"`
	TableName       string `yaml:"-"`
}

// TableSet is the tables document.
type TableSet struct {
	Tables     []Table     `yaml:"tables"`
	WorkTables []WorkTable `yaml:"work_tables"`
}

// Aliases returns every alias declared by tables and work tables.
func (t *TableSet) Aliases() map[string]bool {
	out := make(map[string]bool)
	for _, tbl := range t.Tables {
		out[tbl.Alias] = true
	}
	for _, wt := range t.WorkTables {
		out[wt.Alias] = true
	}
	return out
}

// IdentifierColumn is one alias-qualified column of an identifier.
type IdentifierColumn struct {
	Alias  string
	Column string
}

// Qualified returns "alias.column".
func (c IdentifierColumn) Qualified() string {
	return c.Alias + "." + c.Column
}

// Identifier is a grain at which the waterfall is counted, e.g. account or
// household. Key is the unaliased column list.
type Identifier struct {
	Key     string
	Columns []IdentifierColumn
}

// ColumnNames returns the unaliased column names.
func (id Identifier) ColumnNames() []string {
	out := make([]string, len(id.Columns))
	for i, c := range id.Columns {
		out[i] = c.Column
	}
	return out
}
