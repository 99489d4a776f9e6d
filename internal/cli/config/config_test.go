package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/sqlite"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

const baseConfig = `campaign:
  offer_code: TST0001
  campaign_planner: Pat
  lead: Sam
  username: jdoe
conditions_file: campaign/conditions.yaml
tables_file: campaign/tables.yaml
unique_identifiers:
  - a.acct_id
  - a.acct_id, b.hh_id
report_dir: out
target:
  type: postgres
  host: localhost
  user: ${WATERFALL_TEST_USER}
  password: ${WATERFALL_TEST_PASSWORD}
  work_schema: work
  options:
    sslmode: disable
outputs:
  email:
    sql: SELECT acct_id FROM {eligibility_table}
    format: delimited
    delimiter: "|"
    header: false
  sms:
    sql: SELECT acct_id FROM {eligibility_table}
    file_location: /data/sms
environments:
  prod:
    report_dir: /reports
    target:
      host: warehouse.internal
      port: 6543
      work_schema: prod_work
      options:
        application_name: waterfall
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waterfall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("WATERFALL_TEST_VAR", "secret")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no variables", "plain", "plain"},
		{"single variable", "${WATERFALL_TEST_VAR}", "secret"},
		{"embedded variable", "pre-${WATERFALL_TEST_VAR}-post", "pre-secret-post"},
		{"unset variable kept", "${WATERFALL_TEST_UNSET}", "${WATERFALL_TEST_UNSET}"},
		{"bare dollar untouched", "$WATERFALL_TEST_VAR", "$WATERFALL_TEST_VAR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestMergeTargetConfig(t *testing.T) {
	t.Run("nil base returns override", func(t *testing.T) {
		override := &TargetConfig{Type: "sqlite"}
		assert.Equal(t, override, MergeTargetConfig(nil, override))
	})

	t.Run("nil override returns base", func(t *testing.T) {
		base := &TargetConfig{Type: "sqlite"}
		assert.Equal(t, base, MergeTargetConfig(base, nil))
	})

	t.Run("override replaces set fields", func(t *testing.T) {
		base := &TargetConfig{
			Type:       "teradata",
			Host:       "td-dev",
			User:       "jdoe",
			WorkSchema: "dev_work",
			Options:    map[string]string{"a": "1", "b": "2"},
			Params:     map[string]any{"logmech": "TD2"},
		}
		override := &TargetConfig{
			Host:       "td-prod",
			WorkSchema: "prod_work",
			Options:    map[string]string{"b": "3"},
			Params:     map[string]any{"logmech": "KRB5"},
		}

		merged := MergeTargetConfig(base, override)
		assert.Equal(t, "teradata", merged.Type)
		assert.Equal(t, "td-prod", merged.Host)
		assert.Equal(t, "jdoe", merged.User)
		assert.Equal(t, "prod_work", merged.WorkSchema)
		assert.Equal(t, map[string]string{"a": "1", "b": "3"}, merged.Options)
		assert.Equal(t, "KRB5", merged.Params["logmech"])
		assert.Equal(t, "2", base.Options["b"], "base must not be modified")
	})
}

func TestApplyTargetDefaults(t *testing.T) {
	tests := []struct {
		typ  string
		port int
		want int
	}{
		{"postgres", 0, 5432},
		{"mssql", 0, 1433},
		{"teradata", 0, 1025},
		{"sqlite", 0, 0},
		{"postgres", 6543, 6543},
	}
	for _, tt := range tests {
		target := &TargetConfig{Type: tt.typ, Port: tt.port}
		ApplyTargetDefaults(target)
		assert.Equal(t, tt.want, target.Port, tt.typ)
	}
	ApplyTargetDefaults(nil)
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	t.Setenv("WATERFALL_TEST_USER", "svc_waterfall")
	path := writeConfig(t, baseConfig)
	root := filepath.Dir(path)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, "TST0001", cfg.Campaign.OfferCode)
	assert.Equal(t, filepath.Join(root, "campaign", "conditions.yaml"), cfg.ConditionsFile)
	assert.Equal(t, filepath.Join(root, "out"), cfg.ReportDir)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, []string{"a.acct_id", "a.acct_id, b.hh_id"}, cfg.UniqueIdentifiers)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, DefaultEnv, cfg.Environment)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)

	assert.Equal(t, 5432, cfg.Target.Port)
	assert.Equal(t, "svc_waterfall", cfg.Target.User)
	assert.Equal(t, "${WATERFALL_TEST_PASSWORD}", cfg.Target.Password)

	outputs := cfg.OutputInstructions()
	require.Len(t, outputs, 2)
	assert.Equal(t, "email", outputs[0].Channel)
	assert.Equal(t, core.FormatDelimited, outputs[0].Format)
	assert.Equal(t, "|", outputs[0].Delimiter)
	assert.False(t, outputs[0].WantHeader())
	assert.Equal(t, filepath.Join(root, "out"), outputs[0].FileLocation)
	assert.Equal(t, "sms", outputs[1].Channel)
	assert.Equal(t, "/data/sms", outputs[1].FileLocation)
	assert.True(t, outputs[1].WantHeader())

	src := cfg.Sources()
	assert.Equal(t, cfg.TablesFile, src.TablesFile)
	assert.Equal(t, cfg.UniqueIdentifiers, src.Identifiers)
}

func TestLoadConfigWithTarget_Environment(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, baseConfig)

	cfg, err := LoadConfigWithTarget(path, "prod", nil)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "warehouse.internal", cfg.Target.Host)
	assert.Equal(t, 6543, cfg.Target.Port)
	assert.Equal(t, "prod_work", cfg.Target.WorkSchema)
	assert.Equal(t, "disable", cfg.Target.Options["sslmode"])
	assert.Equal(t, "waterfall", cfg.Target.Options["application_name"])
	assert.Equal(t, "/reports", cfg.ReportDir)
}

func TestLoadConfigWithTarget_NonexistentEnvironment(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, baseConfig)

	_, err := LoadConfigWithTarget(path, "staging", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target environment "staging"`)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadConfig_FileTargetResolved(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `conditions_file: c.yaml
tables_file: t.yaml
unique_identifiers: [a.acct_id]
target:
  type: sqlite
  database: data/warehouse.db
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "warehouse.db"), cfg.Target.Database)
	assert.Equal(t, 0, cfg.Target.Port)
}

func TestConfig_Validate(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `parallelism: -1
output: fancy
log:
  format: xml
target:
  type: oracle
outputs:
  main:
    sql: SELECT 1
  email:
    format: parquet
    delimiter: ";;"
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	var ce *core.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.Source)

	msg := err.Error()
	for _, want := range []string{
		"conditions_file is required",
		"tables_file is required",
		"unique_identifiers is required",
		"parallelism",
		"output must be one of",
		"log.format must be one of",
		`unknown target type "oracle"`,
		"outputs.main: the main channel has no output",
		"outputs.main.sql must select from {eligibility_table}",
		"outputs[email].sql is required",
		"outputs[email].format must be one of",
		"outputs.email.delimiter is only used with format",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadConfigWithTarget_FlagPrecedence(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, baseConfig)
	t.Setenv("WATERFALL_REPORT_DIR", "/from_env")
	t.Setenv("WATERFALL_LOG__LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "")
	flags.String("log-level", "", "")
	flags.StringP("target", "t", "", "")
	flags.String("output", "", "")
	require.NoError(t, flags.Set("state", "from_flag.db"))
	require.NoError(t, flags.Set("log-level", "debug"))
	require.NoError(t, flags.Set("target", "prod"))

	cfg, err := LoadConfigWithTarget(path, "", flags)
	require.NoError(t, err)

	abs, err := filepath.Abs("from_flag.db")
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.StatePath, "flag paths are relative to the working directory")
	assert.Equal(t, "debug", cfg.Log.Level, "flag overrides env")
	assert.Equal(t, "/from_env", cfg.ReportDir, "env overrides file")
	assert.Equal(t, DefaultOutput, cfg.OutputFormat, "unset flag keeps default")
	assert.Equal(t, "localhost", cfg.Target.Host, "the target flag is applied by the caller")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, baseConfig)
	t.Setenv("WATERFALL_PARALLELISM", "4")
	t.Setenv("WATERFALL_TARGET__HOST", "env-host")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, "env-host", cfg.Target.Host)
}

func TestFindProjectRootUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "waterfall.yml"), []byte("{}"), 0o600))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Equal(t, root, findProjectRootUpward(nested))
	assert.Equal(t, "", findProjectRootUpward(t.TempDir()))
}
