package campaign

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// LoadTables reads and parses a tables document (YAML or JSON).
func LoadTables(path string) (*core.TableSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user's own config
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	return ParseTables(data)
}

// ParseTables parses and validates a tables document. Unknown keys are
// rejected, so a misspelled join_conditions never silently drops a join.
func ParseTables(data []byte) (*core.TableSet, error) {
	var ts core.TableSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ts); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.NewConfigError("tables", []error{fmt.Errorf("invalid tables document: %w", err)})
	}
	if err := core.NewConfigError("tables", ValidateTables(&ts)); err != nil {
		return nil, err
	}
	return &ts, nil
}
