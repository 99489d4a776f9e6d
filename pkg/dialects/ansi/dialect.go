// Package ansi provides the baseline ANSI dialect used when a warehouse has
// no dedicated dialect package.
package ansi

import "github.com/leapstack-labs/waterfall/pkg/dialect"

func init() {
	dialect.Register(ANSI)
}

// Config is the ANSI dialect configuration.
var Config = &dialect.Config{
	Name:       "ansi",
	CTAS:       dialect.CTASStandard,
	Statistics: dialect.StatsNone,
	Identifiers: dialect.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
	},
}

// ReservedWords are the SQL:2016 words most likely to collide with column names.
var ReservedWords = []string{
	"all", "and", "as", "between", "by", "case", "check", "column", "create",
	"cross", "date", "default", "distinct", "else", "end", "exists", "from",
	"full", "group", "having", "in", "inner", "into", "is", "join", "left",
	"like", "not", "null", "on", "or", "order", "outer", "right", "select",
	"table", "then", "time", "timestamp", "union", "user", "using", "value",
	"values", "when", "where", "with",
}

// ANSI is the ANSI dialect.
var ANSI = dialect.New(Config).
	WithReservedWords(ReservedWords...).
	Build()
