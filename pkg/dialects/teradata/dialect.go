// Package teradata provides the Teradata dialect definition.
// This package is pure Go with no database driver dependencies.
package teradata

import (
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	"github.com/leapstack-labs/waterfall/pkg/dialects/ansi"
)

func init() {
	dialect.Register(Teradata)
}

// Config is the Teradata dialect configuration.
// Tables are created WITH DATA and a named primary index so statistics can be
// collected on the identifier columns.
var Config = &dialect.Config{
	Name:          "teradata",
	DefaultSchema: "user_work",
	CTAS:          dialect.CTASWithData,
	Statistics:    dialect.StatsCollect,
	Identifiers:   ansi.Config.Identifiers,
}

// Teradata is the Teradata dialect.
var Teradata = dialect.New(Config).
	WithReservedWords(ansi.ReservedWords...).
	WithReservedWords("account", "database", "qualify", "sample", "title", "type", "year", "month").
	Build()
