package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/waterfall/internal/campaign"
	"github.com/leapstack-labs/waterfall/pkg/adapter"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

var validate = newValidator()

// newValidator reports fields by their config key rather than their Go name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration. Every problem is reported in one
// *core.ConfigError.
func (c *Config) Validate() error {
	var issues []error
	if err := validate.Struct(c); err != nil {
		issues = append(issues, campaign.FieldIssues(err)...)
	}

	if c.Target != nil && c.Target.Type != "" && !adapter.IsRegistered(c.Target.Type) {
		issues = append(issues, fmt.Errorf("unknown target type %q (available: %s)\nHint: set target.type in waterfall.yaml",
			c.Target.Type, strings.Join(adapter.ListAdapters(), ", ")))
	}

	for _, name := range sortedKeys(c.Outputs) {
		o := c.Outputs[name]
		if name == core.MainChannel {
			issues = append(issues, fmt.Errorf("outputs.%s: the main channel has no output of its own", name))
		}
		if o.SQL != "" && !strings.Contains(o.SQL, core.EligibilityPlaceholder) {
			issues = append(issues, fmt.Errorf("outputs.%s.sql must select from %s", name, core.EligibilityPlaceholder))
		}
		if o.Delimiter != "" && o.Format != core.FormatDelimited {
			issues = append(issues, fmt.Errorf("outputs.%s.delimiter is only used with format %q", name, core.FormatDelimited))
		}
	}

	source := "config"
	if configFileUsed != "" {
		source = configFileUsed
	}
	return core.NewConfigError(source, issues)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
