// Package config loads the waterfall CLI configuration.
//
// Settings come from defaults, a waterfall.yaml file found in the working
// directory or one of its parents, WATERFALL_ environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"github.com/leapstack-labs/waterfall/internal/campaign"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	Campaign          core.Campaign                     `koanf:"campaign" validate:"-"`
	ConditionsFile    string                            `koanf:"conditions_file" validate:"required"`
	TablesFile        string                            `koanf:"tables_file" validate:"required"`
	UniqueIdentifiers []string                          `koanf:"unique_identifiers" validate:"required,min=1"`
	ReportDir         string                            `koanf:"report_dir"`
	Parallelism       int                               `koanf:"parallelism" validate:"gte=0,lte=64"`
	StatePath         string                            `koanf:"state_path"`
	Environment       string                            `koanf:"environment"`
	Verbose           bool                              `koanf:"verbose"`
	OutputFormat      string                            `koanf:"output" validate:"omitempty,oneof=auto text markdown json"`
	Log               LogConfig                         `koanf:"log"`
	Target            *TargetConfig                     `koanf:"target" validate:"required"`
	Outputs           map[string]core.OutputInstruction `koanf:"outputs" validate:"dive"`
	Environments      map[string]EnvConfig              `koanf:"environments" validate:"-"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
	File   string `koanf:"file"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Target    *TargetConfig `koanf:"target"`
	ReportDir string        `koanf:"report_dir"`
	StatePath string        `koanf:"state_path"`
}

// Default configuration values.
const (
	DefaultStateFile = ".waterfall/state.db"
	DefaultEnv       = "dev"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultReportDir = "."
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Sources returns the campaign document locations described by the config.
func (c *Config) Sources() campaign.Sources {
	return campaign.Sources{
		Campaign:       c.Campaign,
		ConditionsFile: c.ConditionsFile,
		TablesFile:     c.TablesFile,
		Identifiers:    c.UniqueIdentifiers,
	}
}

// OutputInstructions returns the channel outputs with their channel names set,
// ordered by channel.
func (c *Config) OutputInstructions() []core.OutputInstruction {
	out := make([]core.OutputInstruction, 0, len(c.Outputs))
	for _, name := range sortedKeys(c.Outputs) {
		o := c.Outputs[name]
		o.Channel = name
		out = append(out, o)
	}
	return out
}
