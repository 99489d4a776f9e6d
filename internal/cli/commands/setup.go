package commands

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/waterfall/internal/cli/config"
	"github.com/leapstack-labs/waterfall/internal/cli/output"
	"github.com/leapstack-labs/waterfall/internal/engine"
)

// errNoConfig is returned when a command runs before configuration was loaded.
var errNoConfig = errors.New("no configuration loaded\nHint: create waterfall.yaml or pass --config")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext validates the configuration and creates an engine and
// renderer. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := newCommandContext(cmd, true)
	if err != nil {
		return nil, nil, err
	}
	return cc, func() { _ = cc.Engine.Close() }, nil
}

// NewCommandContextWithoutState is NewCommandContext with run tracking
// disabled. The engine holds no resources, so there is nothing to clean up.
func NewCommandContextWithoutState(cmd *cobra.Command) (*CommandContext, error) {
	return newCommandContext(cmd, false)
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := config.GetCurrentConfig()
	mode := output.ModeAuto
	if cfg != nil {
		mode = output.Mode(cfg.OutputFormat)
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

func newCommandContext(cmd *cobra.Command, withState bool) (*CommandContext, error) {
	cc := NewCommandContextWithoutEngine(cmd)
	if cc.Cfg == nil {
		return nil, errNoConfig
	}
	if err := cc.Cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := createEngine(cc.Cfg, cc.Logger, withState)
	if err != nil {
		return nil, err
	}
	cc.Engine = eng
	return cc, nil
}

func createEngine(cfg *config.Config, logger *slog.Logger, withState bool) (*engine.Engine, error) {
	engineCfg := engine.Config{
		Campaign:    cfg.Sources(),
		Target:      *cfg.Target,
		Environment: cfg.Environment,
		ReportDir:   cfg.ReportDir,
		Parallelism: cfg.Parallelism,
		Outputs:     cfg.OutputInstructions(),
		Logger:      logger,
	}
	if withState {
		engineCfg.StatePath = cfg.StatePath
	}
	return engine.New(engineCfg)
}
