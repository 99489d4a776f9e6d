// Package campaign loads and validates the documents describing a campaign:
// the ordered eligibility conditions, the source tables and the identifier
// column sets the waterfall is counted at.
package campaign

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// namePattern restricts channel and template names to what can be embedded in
// a flag column name.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var knownCheckFields = map[string]bool{
	"sql":         true,
	"description": true,
	"output":      true,
}

// checkDoc is one entry of a template's check list.
type checkDoc struct {
	SQL         string `yaml:"sql"`
	Description string `yaml:"description"`
	Output      bool   `yaml:"output"`
}

// LoadConditions reads and parses a conditions document (YAML or JSON).
func LoadConditions(path string) (*core.Conditions, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user's own config
	if err != nil {
		return nil, fmt.Errorf("failed to read conditions file: %w", err)
	}
	return ParseConditions(data)
}

// ParseConditions parses a conditions document.
//
// The document is an ordered mapping channel -> template -> list of checks.
// It is walked as a yaml.Node tree so document order survives; JSON input is
// valid YAML and takes the same path. Structural problems are collected and
// returned together as a *core.ConfigError.
func ParseConditions(data []byte) (*core.Conditions, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, core.NewConfigError("conditions", []error{fmt.Errorf("invalid YAML: %w", err)})
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, core.NewConfigError("conditions", []error{fmt.Errorf("conditions must be a mapping of channel to templates")})
	}

	var (
		checks []core.Check
		issues []error
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		channel := root.Content[i].Value
		templates := root.Content[i+1]
		if !namePattern.MatchString(channel) {
			issues = append(issues, fmt.Errorf("line %d: invalid channel name %q", root.Content[i].Line, channel))
		}
		if templates.Kind != yaml.MappingNode {
			issues = append(issues, fmt.Errorf("line %d: channel %q must be a mapping of template to checks", templates.Line, channel))
			continue
		}
		for j := 0; j+1 < len(templates.Content); j += 2 {
			template := templates.Content[j].Value
			list := templates.Content[j+1]
			if !namePattern.MatchString(template) {
				issues = append(issues, fmt.Errorf("line %d: invalid template name %q", templates.Content[j].Line, template))
			}
			if list.Kind != yaml.SequenceNode {
				issues = append(issues, fmt.Errorf("line %d: %s/%s must be a list of checks", list.Line, channel, template))
				continue
			}
			for k, item := range list.Content {
				check, errs := decodeCheck(item, channel, template, k+1)
				issues = append(issues, errs...)
				checks = append(checks, check)
			}
		}
	}

	issues = append(issues, validateChecks(checks)...)
	if err := core.NewConfigError("conditions", issues); err != nil {
		return nil, err
	}
	return core.NewConditions(checks)
}

func decodeCheck(node *yaml.Node, channel, template string, num int) (core.Check, []error) {
	check := core.Check{
		Channel:  channel,
		Template: template,
		Num:      num,
		Name:     core.CheckName(channel, template, num),
	}
	if node.Kind != yaml.MappingNode {
		return check, []error{fmt.Errorf("line %d: %s/%s check %d must be a mapping", node.Line, channel, template, num)}
	}

	var issues []error
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !knownCheckFields[key] {
			issues = append(issues, fmt.Errorf("line %d: unknown field %q in %s", node.Content[i].Line, key, check.Name))
		}
	}

	var doc checkDoc
	if err := node.Decode(&doc); err != nil {
		return check, append(issues, fmt.Errorf("line %d: %s: %w", node.Line, check.Name, err))
	}
	check.SQL = doc.SQL
	check.Description = doc.Description
	check.Output = doc.Output
	return check, issues
}
