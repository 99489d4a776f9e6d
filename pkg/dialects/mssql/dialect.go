// Package mssql provides the SQL Server dialect definition.
// This package is pure Go with no database driver dependencies.
package mssql

import (
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	"github.com/leapstack-labs/waterfall/pkg/dialects/ansi"
)

func init() {
	dialect.Register(MSSQL)
}

// Config is the SQL Server dialect configuration.
// SQL Server has no CREATE TABLE AS, results are materialized with SELECT INTO.
var Config = &dialect.Config{
	Name:          "mssql",
	DefaultSchema: "dbo",
	CTAS:          dialect.CTASSelectInto,
	Statistics:    dialect.StatsUpdate,
	DropIfExists:  true,
	Identifiers: dialect.IdentifierConfig{
		Quote:    "[",
		QuoteEnd: "]",
		Escape:   "]]",
	},
}

// MSSQL is the SQL Server dialect.
var MSSQL = dialect.New(Config).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords("top", "identity", "key", "percent", "plan").
	Build()
