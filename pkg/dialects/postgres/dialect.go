// Package postgres provides the PostgreSQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import (
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	"github.com/leapstack-labs/waterfall/pkg/dialects/ansi"
)

func init() {
	dialect.Register(Postgres)
}

// Config is the PostgreSQL dialect configuration.
var Config = &dialect.Config{
	Name:          "postgres",
	DefaultSchema: "public",
	CTAS:          dialect.CTASStandard,
	Statistics:    dialect.StatsAnalyze,
	DropIfExists:  true,
	Identifiers:   ansi.Config.Identifiers,
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.New(Config).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords("analyse", "analyze", "limit", "offset", "returning", "window").
	Build()
