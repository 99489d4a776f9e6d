// Package teradata provides the Teradata warehouse adapter.
//
// The adapter speaks to the "teradatasql" database/sql driver through its JSON
// connection string. The driver is distributed by Teradata and is linked by
// the final binary; when it is missing Connect fails with a hint instead of
// the bare "unknown driver" error.
package teradata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/waterfall/pkg/adapter"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	tddialect "github.com/leapstack-labs/waterfall/pkg/dialects/teradata"
)

// DriverName is the database/sql driver name registered by the Teradata driver.
const DriverName = "teradatasql"

// Params holds Teradata-specific connection settings.
type Params struct {
	// LogMech is the logon mechanism: TD2, LDAP, KRB5, TDNEGO, BROWSER...
	LogMech string `mapstructure:"logmech"`
	// LogData carries mechanism-specific logon data.
	LogData string `mapstructure:"logdata"`
	// TMode is the transaction mode, ANSI or TERA.
	TMode string `mapstructure:"tmode"`
	// Encrypt requests data encryption on the wire.
	Encrypt bool `mapstructure:"encryptdata"`
	// Account is the Teradata account string.
	Account string `mapstructure:"account"`
}

// Adapter implements the adapter.Adapter interface for Teradata.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new Teradata adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "teradata"
}

// Dialect returns the Teradata dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return tddialect.Teradata
}

// Connect establishes a connection to Teradata.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return fmt.Errorf("invalid teradata params: %w", err)
	}
	if cfg.Type == "" {
		cfg.Type = "teradata"
	}
	if err := adapter.CheckDriver(cfg.Type, DriverName, sqlDrivers()); err != nil {
		return err
	}

	dsn, err := buildDSN(cfg, params)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to teradata",
		slog.String("host", cfg.Host),
		slog.String("user", cfg.Username),
		slog.String("logmech", params.LogMech))
	return a.OpenAndPing(ctx, DriverName, dsn, cfg)
}

// buildDSN renders the driver's JSON connection string. Options are passed
// through verbatim as extra connection parameters.
func buildDSN(cfg adapter.Config, params Params) (string, error) {
	conn := make(map[string]string, len(cfg.Options)+8)
	for k, v := range cfg.Options {
		conn[k] = v
	}
	conn["host"] = cfg.Host
	if cfg.Port != 0 {
		conn["dbs_port"] = strconv.Itoa(cfg.Port)
	}
	if cfg.Username != "" {
		conn["user"] = cfg.Username
	}
	if cfg.Password != "" {
		conn["password"] = cfg.Password
	}
	if cfg.Database != "" {
		conn["database"] = cfg.Database
	}
	if params.LogMech != "" {
		conn["logmech"] = params.LogMech
	}
	if params.LogData != "" {
		conn["logdata"] = params.LogData
	}
	if params.TMode != "" {
		conn["tmode"] = params.TMode
	}
	if params.Encrypt {
		conn["encryptdata"] = "true"
	}
	if params.Account != "" {
		conn["account"] = params.Account
	}

	b, err := json.Marshal(conn)
	if err != nil {
		return "", fmt.Errorf("failed to encode teradata connection parameters: %w", err)
	}
	return string(b), nil
}
