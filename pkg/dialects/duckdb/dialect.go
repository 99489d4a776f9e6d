// Package duckdb provides the DuckDB dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	"github.com/leapstack-labs/waterfall/pkg/dialects/ansi"
)

func init() {
	dialect.Register(DuckDB)
}

// Config is the DuckDB dialect configuration.
// DuckDB keeps statistics current on its own, so no statistics statement is emitted.
var Config = &dialect.Config{
	Name:          "duckdb",
	DefaultSchema: "main",
	CTAS:          dialect.CTASStandard,
	Statistics:    dialect.StatsNone,
	DropIfExists:  true,
	Identifiers:   ansi.Config.Identifiers,
}

// DuckDB is the DuckDB dialect.
var DuckDB = dialect.New(Config).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords("pivot", "unpivot", "qualify", "summarize").
	Build()
