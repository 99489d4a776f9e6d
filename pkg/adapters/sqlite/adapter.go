// Package sqlite provides a SQLite warehouse adapter backed by modernc.org/sqlite.
//
// It is mostly useful for local runs and tests; the connection pool is pinned
// to a single connection so ":memory:" databases survive across statements.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/waterfall/pkg/adapter"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
	sqlitedialect "github.com/leapstack-labs/waterfall/pkg/dialects/sqlite"

	_ "modernc.org/sqlite" // sqlite driver
)

// Params holds SQLite-specific configuration.
type Params struct {
	// Pragmas are applied after connecting, e.g. {journal_mode: wal}.
	Pragmas map[string]string `mapstructure:"pragmas"`
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
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
	return "sqlite"
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return sqlitedialect.SQLite
}

// Connect opens the database file at cfg.Path (":memory:" when empty).
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return fmt.Errorf("invalid sqlite params: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	if cfg.Type == "" {
		cfg.Type = "sqlite"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))
	if err := a.OpenAndPing(ctx, "sqlite", path, cfg); err != nil {
		return err
	}
	a.DB.SetMaxOpenConns(1)

	for _, name := range sortedKeys(params.Pragmas) {
		stmt := fmt.Sprintf("PRAGMA %s = %s", name, params.Pragmas[name])
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to apply pragma %s: %w", name, err)
		}
	}
	return nil
}
