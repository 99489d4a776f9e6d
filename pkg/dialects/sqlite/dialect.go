// Package sqlite provides the SQLite dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import (
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	"github.com/leapstack-labs/waterfall/pkg/dialects/ansi"
)

func init() {
	dialect.Register(SQLite)
}

// Config is the SQLite dialect configuration.
var Config = &dialect.Config{
	Name:          "sqlite",
	DefaultSchema: "main",
	CTAS:          dialect.CTASStandard,
	Statistics:    dialect.StatsAnalyze,
	DropIfExists:  true,
	Identifiers:   ansi.Config.Identifiers,
}

// SQLite is the SQLite dialect.
var SQLite = dialect.New(Config).
	WithReservedWords(ansi.ReservedWords...).
	Build()
