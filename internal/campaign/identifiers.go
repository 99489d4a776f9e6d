package campaign

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

var identifierPattern = regexp.MustCompile(`^[a-z]+\.[a-zA-Z0-9_]+$`)

// ParseIdentifier parses "a.acct_id" or "a.acct_id, b.hh_id".
func ParseIdentifier(s string) (core.Identifier, error) {
	var id core.Identifier
	var keys []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if !identifierPattern.MatchString(part) {
			return core.Identifier{}, fmt.Errorf("identifier %q: %q must look like alias.column", s, part)
		}
		alias, column, _ := strings.Cut(part, ".")
		id.Columns = append(id.Columns, core.IdentifierColumn{Alias: alias, Column: column})
		keys = append(keys, column)
	}
	id.Key = strings.Join(keys, ", ")
	return id, nil
}

// ParseIdentifiers parses every identifier set and checks them against the
// declared table aliases. All problems are reported together.
func ParseIdentifiers(raw []string, tables *core.TableSet) ([]core.Identifier, error) {
	var (
		ids    []core.Identifier
		issues []error
	)
	if len(raw) == 0 {
		issues = append(issues, fmt.Errorf("at least one unique identifier is required"))
	}

	aliases := tables.Aliases()
	columnAlias := make(map[string]string)
	seen := make(map[string]bool)
	for _, s := range raw {
		id, err := ParseIdentifier(s)
		if err != nil {
			issues = append(issues, err)
			continue
		}
		canonical := canonicalIdentifier(id)
		if seen[canonical] {
			issues = append(issues, fmt.Errorf("identifier %q is listed more than once", s))
			continue
		}
		seen[canonical] = true

		for _, c := range id.Columns {
			if !aliases[c.Alias] {
				issues = append(issues, fmt.Errorf("identifier %q: alias %q is not declared in tables", s, c.Alias))
			}
			if prev, ok := columnAlias[c.Column]; ok && prev != c.Alias {
				issues = append(issues, fmt.Errorf("identifier %q: column %q is used with aliases %q and %q", s, c.Column, prev, c.Alias))
			}
			columnAlias[c.Column] = c.Alias
		}
		ids = append(ids, id)
	}

	if err := core.NewConfigError("unique identifiers", issues); err != nil {
		return nil, err
	}
	return ids, nil
}

func canonicalIdentifier(id core.Identifier) string {
	parts := make([]string, len(id.Columns))
	for i, c := range id.Columns {
		parts[i] = c.Qualified()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
