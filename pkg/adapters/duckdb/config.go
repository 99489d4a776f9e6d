package duckdb

import "github.com/leapstack-labs/waterfall/pkg/adapter"

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load before any statement runs (e.g. "httpfs").
	Extensions []string `mapstructure:"extensions"`

	// Settings applied with SET at session level (e.g. memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`

	// Attach maps an alias to a database file attached read-only, so source
	// tables living in other DuckDB files can be referenced as alias.table.
	Attach map[string]string `mapstructure:"attach"`
}

func parseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if err := adapter.DecodeParams(params, p); err != nil {
		return nil, err
	}
	return p, nil
}
