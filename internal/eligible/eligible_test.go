package eligible

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/internal/testutil"
	"github.com/leapstack-labs/waterfall/internal/warehouse"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/sqlite"
	"github.com/leapstack-labs/waterfall/pkg/core"
	sqlitedialect "github.com/leapstack-labs/waterfall/pkg/dialects/sqlite"
)

func openSession(t *testing.T) *warehouse.Session {
	t.Helper()
	ctx := context.Background()
	s, err := warehouse.Open(ctx, core.AdapterConfig{Type: "sqlite"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	for _, stmt := range []string{
		`CREATE TABLE accounts (acct_id INTEGER, hh_id INTEGER, age INTEGER, status TEXT)`,
		`CREATE TABLE contacts (acct_id INTEGER, email TEXT)`,
		`INSERT INTO accounts VALUES (1, 10, 30, 'OPEN'), (2, 10, 17, 'OPEN'), (3, 20, 45, 'CLOSED'), (4, 30, 50, 'OPEN')`,
		`INSERT INTO contacts VALUES (1, 'a@x'), (2, NULL), (4, 'd@x')`,
	} {
		require.NoError(t, s.Exec(ctx, stmt))
	}
	return s
}

func newConstructor(t *testing.T, checks []core.Check, workSQL string) *sqlgen.Constructor {
	t.Helper()
	conds, err := core.NewConditions(checks)
	require.NoError(t, err)
	tables := &core.TableSet{
		Tables: []core.Table{
			{Name: "accounts", JoinType: "FROM", Alias: "a", WhereConditions: "a.status = 'OPEN'"},
			{Name: "contacts", JoinType: "LEFT JOIN", Alias: "c", JoinConditions: "a.acct_id = c.acct_id"},
		},
		WorkTables: []core.WorkTable{
			{SQL: workSQL, JoinType: "INNER JOIN", Alias: "w", JoinConditions: "a.acct_id = w.acct_id", UniqueIndex: "acct_id"},
		},
	}
	ids := []core.Identifier{{Key: "acct_id", Columns: []core.IdentifierColumn{{Alias: "a", Column: "acct_id"}}}}
	n := 0
	c, err := sqlgen.New(conds, tables, ids, core.Campaign{OfferCode: "TST0001", Username: "jdoe"},
		sqlitedialect.SQLite, sqlgen.Options{Suffix: func() string { n++; return fmt.Sprintf("t%02d", n) }})
	require.NoError(t, err)
	return c
}

var testChecks = []core.Check{
	{Channel: "main", Template: "BA", Num: 1, Name: "main_BA_1", SQL: "a.age >= 18"},
	{Channel: "email", Template: "BA", Num: 1, Name: "email_BA_1", SQL: "c.email IS NOT NULL"},
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	c := newConstructor(t, testChecks, "SELECT acct_id FROM accounts WHERE acct_id <> 4")

	e := New(s, c, testutil.NewTestLogger(t))
	require.NoError(t, e.Generate(ctx))
	assert.True(t, e.Generated())
	assert.Equal(t, "main.jdoe_t02", e.EligibilityTable())
	assert.Equal(t, []string{"main.jdoe_t01", "main.jdoe_t02"}, s.Tracked())

	got, err := s.FetchTable(ctx, "SELECT acct_id, main_BA_1, email_BA_1 FROM "+e.EligibilityTable()+" ORDER BY acct_id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int64(1), int64(1), int64(1)},
		{int64(2), int64(0), int64(0)},
	}, got.Rows)
}

func TestGenerate_WorkTableFailure(t *testing.T) {
	s := openSession(t)
	c := newConstructor(t, testChecks, "SELECT acct_id FROM no_such_table")

	err := New(s, c, nil).Generate(context.Background())
	require.Error(t, err)

	var qe *core.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, core.StageWorkTable, qe.Stage)
	assert.Equal(t, "main.jdoe_t01", qe.Table)
	assert.Contains(t, qe.SQL, "no_such_table")
	assert.Empty(t, s.Tracked())
}

func TestGenerate_ConditionFailure(t *testing.T) {
	s := openSession(t)
	checks := append([]core.Check(nil), testChecks...)
	checks = append(checks, core.Check{Channel: "email", Template: "T1", Num: 1, Name: "email_T1_1", SQL: "a.no_such_column > 0"})
	c := newConstructor(t, checks, "SELECT acct_id FROM accounts")

	err := New(s, c, nil).Generate(context.Background())

	var qe *core.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, core.StageEligibility, qe.Stage)
	// the work table exists and stays tracked for cleanup
	assert.Equal(t, []string{"main.jdoe_t01"}, s.Tracked())
}
