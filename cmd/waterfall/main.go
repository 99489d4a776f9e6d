// Package main provides the CLI for the waterfall campaign eligibility tool.
package main

import (
	"os"

	"github.com/leapstack-labs/waterfall/internal/cli"

	// Warehouse adapters and their SQL dialects.
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/mssql"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/teradata"
	_ "github.com/leapstack-labs/waterfall/pkg/dialects/ansi"
	_ "github.com/leapstack-labs/waterfall/pkg/dialects/duckdb"
	_ "github.com/leapstack-labs/waterfall/pkg/dialects/mssql"
	_ "github.com/leapstack-labs/waterfall/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/waterfall/pkg/dialects/sqlite"
	_ "github.com/leapstack-labs/waterfall/pkg/dialects/teradata"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
