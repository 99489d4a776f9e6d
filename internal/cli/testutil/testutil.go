// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	_ "modernc.org/sqlite" // warehouse seeding

	"github.com/leapstack-labs/waterfall/internal/cli/output"
)

// Project is a temporary waterfall project backed by a SQLite warehouse.
type Project struct {
	Dir        string
	ConfigPath string
	Warehouse  string
}

const projectConfig = `campaign:
  offer_code: TST0001
  campaign_planner: Pat
  lead: Sam
  username: jdoe
conditions_file: conditions.yaml
tables_file: tables.yaml
unique_identifiers:
  - a.acct_id
  - a.hh_id
report_dir: reports
state_path: .waterfall/state.db
target:
  type: sqlite
  database: warehouse.db
outputs:
  email:
    sql: SELECT acct_id FROM {eligibility_table} ORDER BY acct_id
    file_location: out
`

const projectConditions = `main:
  BA:
    - sql: a.age >= 18
      description: Adult
    - sql: a.consent = 1
      description: Consented
email:
  BA:
    - sql: a.email IS NOT NULL
      description: Has email
`

const projectTables = `tables:
  - table_name: accounts
    join_type: FROM
    alias: a
`

// SetupTestProject creates a project with a warehouse of ten accounts in
// five households. Accounts 1-2 are minors, 2-3 have not consented and even
// accounts have no email.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	dir := t.TempDir()
	p := &Project{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "waterfall.yaml"),
		Warehouse:  filepath.Join(dir, "warehouse.db"),
	}

	files := map[string]string{
		"waterfall.yaml":  projectConfig,
		"conditions.yaml": projectConditions,
		"tables.yaml":     projectTables,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	db, err := sql.Open("sqlite", p.Warehouse)
	if err != nil {
		t.Fatalf("failed to open warehouse: %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range []string{
		`CREATE TABLE accounts (acct_id INTEGER, hh_id INTEGER, age INTEGER, consent INTEGER, email TEXT)`,
		`WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < 10)
		 INSERT INTO accounts
		 SELECT n, (n + 1) / 2,
		        CASE WHEN n <= 2 THEN 10 ELSE 40 END,
		        CASE WHEN n IN (2, 3) THEN 0 ELSE 1 END,
		        CASE WHEN n % 2 = 1 THEN 'a' || n || '@x' END
		 FROM seq`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to seed warehouse: %v", err)
		}
	}
	return p
}

// WriteFile replaces a project file.
func (p *Project) WriteFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(p.Dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// GeneratedTables lists tables created by runs that are still present.
func (p *Project) GeneratedTables(t *testing.T) []string {
	t.Helper()
	db, err := sql.Open("sqlite", p.Warehouse)
	if err != nil {
		t.Fatalf("failed to open warehouse: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'jdoe\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	return names
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
