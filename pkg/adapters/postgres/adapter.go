// Package postgres provides a PostgreSQL warehouse adapter.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/waterfall/pkg/adapter"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	pgdialect "github.com/leapstack-labs/waterfall/pkg/dialects/postgres"
)

// Params holds PostgreSQL-specific configuration, decoded from target.params.
type Params struct {
	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`
	// SearchPath sets the schema search path for unqualified source tables.
	SearchPath string `mapstructure:"search_path"`
	// StatementTimeout bounds every statement, e.g. "30min".
	StatementTimeout string `mapstructure:"statement_timeout"`
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return pgdialect.Postgres
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return fmt.Errorf("invalid postgres params: %w", err)
	}
	if cfg.Type == "" {
		cfg.Type = "postgres"
	}

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	return a.OpenAndPing(ctx, "pgx", buildPostgresDSN(cfg, params), cfg)
}

// buildPostgresDSN constructs a PostgreSQL key=value connection string.
func buildPostgresDSN(cfg adapter.Config, params Params) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if params.ApplicationName != "" {
		dsn += fmt.Sprintf(" application_name=%s", params.ApplicationName)
	}
	if params.SearchPath != "" {
		dsn += fmt.Sprintf(" search_path=%s", params.SearchPath)
	}
	if params.StatementTimeout != "" {
		dsn += fmt.Sprintf(" statement_timeout=%s", params.StatementTimeout)
	}

	return dsn
}
