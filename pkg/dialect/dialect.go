// Package dialect provides the statement shapes that differ between warehouses.
//
// The waterfall only emits a handful of DDL statements whose syntax varies:
// create-table-as-select, statistics collection and drop. Everything else is
// plain ANSI SELECT text shared by every warehouse. Concrete dialects are
// registered from pkg/dialects/*/ packages.
package dialect

import (
	"fmt"
	"strings"
)

// CTASStyle selects how a query result is materialized into a table.
type CTASStyle int

const (
	// CTASStandard is CREATE TABLE name AS select.
	CTASStandard CTASStyle = iota
	// CTASWithData is the Teradata form: CREATE TABLE name AS (select) WITH DATA.
	CTASWithData
	// CTASSelectInto is the SQL Server form: SELECT * INTO name FROM (select) AS src.
	CTASSelectInto
)

// StatsStyle selects how optimizer statistics are refreshed after a load.
type StatsStyle int

const (
	// StatsNone emits no statistics statement.
	StatsNone StatsStyle = iota
	// StatsAnalyze emits ANALYZE name.
	StatsAnalyze
	// StatsCollect emits COLLECT STATISTICS on the primary index (Teradata).
	StatsCollect
	// StatsUpdate emits UPDATE STATISTICS name (SQL Server).
	StatsUpdate
)

// IndexName is the name given to generated primary indexes.
const IndexName = "prindx"

// IdentifierConfig describes identifier quoting.
type IdentifierConfig struct {
	Quote    string
	QuoteEnd string
	Escape   string
}

// Config is the pure-data description of a dialect.
type Config struct {
	Name string
	// DefaultSchema is used for generated tables when the target sets no work schema.
	DefaultSchema string
	CTAS          CTASStyle
	Statistics    StatsStyle
	// DropIfExists renders DROP TABLE IF EXISTS.
	DropIfExists bool
	Identifiers  IdentifierConfig
}

// Dialect is a built, immutable dialect.
type Dialect struct {
	Name          string
	DefaultSchema string
	Identifiers   IdentifierConfig

	ctas          CTASStyle
	stats         StatsStyle
	dropIfExists  bool
	reservedWords map[string]struct{}
}

// Builder assembles a Dialect from a Config.
type Builder struct {
	dialect *Dialect
}

// New starts a dialect builder from configuration.
func New(cfg *Config) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:          cfg.Name,
			DefaultSchema: cfg.DefaultSchema,
			Identifiers:   cfg.Identifiers,
			ctas:          cfg.CTAS,
			stats:         cfg.Statistics,
			dropIfExists:  cfg.DropIfExists,
			reservedWords: make(map[string]struct{}),
		},
	}
}

// WithReservedWords marks words that must be quoted when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}

// CreateTableAs renders a statement materializing selectSQL into name.
// primaryIndex is honoured only by dialects with a primary index clause.
func (d *Dialect) CreateTableAs(name, selectSQL string, primaryIndex []string) string {
	body := strings.TrimRight(strings.TrimSpace(selectSQL), ";")
	switch d.ctas {
	case CTASWithData:
		stmt := fmt.Sprintf("CREATE TABLE %s AS (\n%s\n) WITH DATA", name, body)
		if len(primaryIndex) > 0 {
			stmt += fmt.Sprintf(" PRIMARY INDEX %s (%s)", IndexName, strings.Join(primaryIndex, ", "))
		}
		return stmt
	case CTASSelectInto:
		return fmt.Sprintf("SELECT * INTO %s FROM (\n%s\n) AS src", name, body)
	default:
		return fmt.Sprintf("CREATE TABLE %s AS\n%s", name, body)
	}
}

// CollectStatistics renders the statistics statement for a freshly loaded
// table, or "" when the dialect has none or the table has no index to collect on.
func (d *Dialect) CollectStatistics(name string, primaryIndex []string) string {
	switch d.stats {
	case StatsAnalyze:
		return "ANALYZE " + name
	case StatsCollect:
		if len(primaryIndex) == 0 {
			return ""
		}
		return fmt.Sprintf("COLLECT STATISTICS INDEX %s ON %s", IndexName, name)
	case StatsUpdate:
		return "UPDATE STATISTICS " + name
	default:
		return ""
	}
}

// DropTable renders a drop statement for a generated table.
func (d *Dialect) DropTable(name string) string {
	if d.dropIfExists {
		return "DROP TABLE IF EXISTS " + name
	}
	return "DROP TABLE " + name
}

// QualifiedName joins a schema and table name. An empty schema falls back to
// the dialect default; a dialect without a default leaves the name bare.
func (d *Dialect) QualifiedName(schema, table string) string {
	if schema == "" {
		schema = d.DefaultSchema
	}
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes reserved words and leaves other names alone.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}
