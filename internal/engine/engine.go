// Package engine wires the campaign stages into a run: eligibility, waterfall,
// report, channel output and cleanup.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/waterfall/internal/campaign"
	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/internal/state"
	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
)

// Engine orchestrates one campaign.
type Engine struct {
	cfg        Config
	definition *campaign.Definition
	dialect    *dialect.Dialect
	store      core.Store
	logger     *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Campaign locates the campaign documents.
	Campaign campaign.Sources
	// Target is the warehouse connection.
	Target core.TargetConfig
	// Environment is recorded with each run.
	Environment string
	// StatePath is the SQLite run state database; empty disables run tracking.
	StatePath string
	// ReportDir receives the waterfall workbook; empty skips the file.
	ReportDir string
	// Parallelism bounds concurrent identifier pipelines.
	Parallelism int
	// Outputs are the channel extraction instructions.
	Outputs []core.OutputInstruction
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New loads and validates the campaign and opens the state store. The
// warehouse is not contacted until Run.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("initializing engine",
		slog.String("offer_code", cfg.Campaign.Campaign.OfferCode),
		slog.String("target", cfg.Target.Type))

	def, err := campaign.Load(cfg.Campaign)
	if err != nil {
		return nil, err
	}

	d, err := dialect.Lookup(cfg.Target.Type)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}

	e := &Engine{cfg: cfg, definition: def, dialect: d, logger: logger}
	if cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
	}
	return e, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Definition returns the loaded campaign.
func (e *Engine) Definition() *campaign.Definition { return e.definition }

// Dialect returns the target dialect.
func (e *Engine) Dialect() *dialect.Dialect { return e.dialect }

// Store returns the run state store, or nil when run tracking is disabled.
func (e *Engine) Store() core.Store { return e.store }

// Constructor returns a SQL constructor with freshly generated table names.
func (e *Engine) Constructor() (*sqlgen.Constructor, error) {
	def := e.definition
	return sqlgen.New(def.Conditions, def.Tables, def.Identifiers, def.Campaign, e.dialect,
		sqlgen.Options{WorkSchema: e.cfg.Target.WorkSchema})
}

// Channels returns the channels with an output instruction, or every output
// channel of the campaign when none is configured.
func (e *Engine) Channels() []string {
	if len(e.cfg.Outputs) == 0 {
		c, err := e.Constructor()
		if err != nil {
			return nil
		}
		return c.OutputChannels()
	}
	out := make([]string, len(e.cfg.Outputs))
	for i, o := range e.cfg.Outputs {
		out[i] = o.Channel
	}
	return out
}

// Render returns every statement a run would execute, without connecting.
func (e *Engine) Render() ([]sqlgen.Statement, error) {
	c, err := e.Constructor()
	if err != nil {
		return nil, err
	}
	return c.Plan(e.Channels())
}
