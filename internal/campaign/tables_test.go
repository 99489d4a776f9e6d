package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

func TestLoadTables(t *testing.T) {
	ts, err := LoadTables("testdata/tables.yaml")
	require.NoError(t, err)

	require.Len(t, ts.Tables, 2)
	require.Len(t, ts.WorkTables, 1)
	assert.Equal(t, "mkt.accounts", ts.Tables[0].Name)
	assert.Equal(t, "a.status = 'OPEN'", ts.Tables[0].WhereConditions)
	assert.Equal(t, "acct_id", ts.WorkTables[0].UniqueIndex)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "s": true}, ts.Aliases())
}

func TestParseTables_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "unknown top-level key",
			doc:     "tables: []\nviews: []\n",
			wantMsg: "field views not found",
		},
		{
			name:    "misspelled entry key",
			doc:     "tables:\n  - table_name: t\n    join_type: FROM\n    alias: a\n    join_condition: x\n",
			wantMsg: "field join_condition not found",
		},
		{
			name:    "empty",
			doc:     "tables: []\n",
			wantMsg: "at least one table",
		},
		{
			name:    "no from",
			doc:     "tables:\n  - table_name: t\n    join_type: INNER JOIN\n    alias: a\n    join_conditions: a.x = a.x\n",
			wantMsg: "exactly one FROM",
		},
		{
			name: "two froms",
			doc: "tables:\n  - table_name: t\n    join_type: FROM\n    alias: a\n" +
				"work_tables:\n  - sql: SELECT 1 AS x\n    join_type: FROM\n    alias: w\n",
			wantMsg: "found 2",
		},
		{
			name: "from not first",
			doc: "tables:\n  - table_name: t\n    join_type: LEFT JOIN\n    alias: a\n    join_conditions: a.x = b.x\n" +
				"  - table_name: u\n    join_type: FROM\n    alias: b\n",
			wantMsg: "must be the first entry",
		},
		{
			name:    "join without conditions",
			doc:     "tables:\n  - table_name: t\n    join_type: FROM\n    alias: a\n  - table_name: u\n    join_type: LEFT JOIN\n    alias: b\n",
			wantMsg: "join_conditions are required for LEFT JOIN",
		},
		{
			name:    "duplicate alias",
			doc:     "tables:\n  - table_name: t\n    join_type: FROM\n    alias: a\n  - table_name: u\n    join_type: CROSS JOIN\n    alias: a\n",
			wantMsg: `alias "a" already used`,
		},
		{
			name:    "unsupported join",
			doc:     "tables:\n  - table_name: t\n    join_type: FROM\n    alias: a\n  - table_name: u\n    join_type: SEMI JOIN\n    alias: b\n    join_conditions: a.x = b.x\n",
			wantMsg: `unsupported join_type "SEMI JOIN"`,
		},
		{
			name:    "work table without sql",
			doc:     "work_tables:\n  - join_type: FROM\n    alias: w\n",
			wantMsg: "work_tables[0]: sql is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, core.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseTables_FromInWorkTable(t *testing.T) {
	doc := "tables:\n  - table_name: t\n    join_type: inner  join\n    alias: a\n    join_conditions: a.id = w.id\n" +
		"work_tables:\n  - sql: SELECT 1 AS id\n    join_type: from\n    alias: w\n"
	ts, err := ParseTables([]byte(doc))
	require.NoError(t, err)
	assert.True(t, core.IsFrom(ts.WorkTables[0].JoinType))
}
