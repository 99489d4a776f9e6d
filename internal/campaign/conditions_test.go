package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

func TestLoadConditions_PreservesDocumentOrder(t *testing.T) {
	conds, err := LoadConditions("testdata/conditions.yaml")
	require.NoError(t, err)

	names := make([]string, 0, conds.Len())
	for _, c := range conds.All() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"main_BA_1", "main_BA_2",
		"email_BA_1",
		"email_T1_1", "email_T1_2",
		"email_T2_1",
	}, names)

	assert.Equal(t, []string{"main", "email"}, conds.Channels())
	assert.Equal(t, []string{"BA", "T1", "T2"}, conds.Templates("email"))

	optIn, ok := conds.Get("email_T1_2")
	require.True(t, ok)
	assert.True(t, optIn.Output)
	assert.Equal(t, "b.opt_in = 1", optIn.SQL)
	assert.Equal(t, "[T1] Opted in", optIn.Label())
	assert.Equal(t, 2, optIn.Num)
}

func TestLoadConditions_JSON(t *testing.T) {
	conds, err := LoadConditions("testdata/conditions.json")
	require.NoError(t, err)

	// JSON object order is kept, not sorted: T9 before T1.
	assert.Equal(t, []string{"BA"}, conds.Templates("main"))
	assert.Equal(t, []string{"T9", "T1"}, conds.Templates("sms"))
}

func TestParseConditions_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "not a mapping",
			doc:     "- a\n- b\n",
			wantMsg: "must be a mapping of channel to templates",
		},
		{
			name:    "missing main",
			doc:     "email:\n  BA:\n    - sql: x = 1\n",
			wantMsg: `must contain a "main" channel`,
		},
		{
			name:    "main with other template",
			doc:     "main:\n  BA:\n    - sql: x = 1\n  T1:\n    - sql: y = 1\n",
			wantMsg: `may only contain the "BA" template`,
		},
		{
			name:    "output under main",
			doc:     "main:\n  BA:\n    - sql: x = 1\n      output: true\n",
			wantMsg: "cannot set output",
		},
		{
			name:    "empty sql",
			doc:     "main:\n  BA:\n    - description: nothing\n",
			wantMsg: "main_BA_1: sql is required",
		},
		{
			name:    "two outputs",
			doc:     "main:\n  BA:\n    - sql: x = 1\nemail:\n  T1:\n    - sql: a = 1\n      output: true\n    - sql: b = 1\n      output: true\n",
			wantMsg: "only one check may set output",
		},
		{
			name:    "output not last",
			doc:     "main:\n  BA:\n    - sql: x = 1\nemail:\n  T1:\n    - sql: a = 1\n      output: true\n    - sql: b = 1\n",
			wantMsg: "must be the last check",
		},
		{
			name:    "unknown field",
			doc:     "main:\n  BA:\n    - sql: x = 1\n      descripton: typo\n",
			wantMsg: `unknown field "descripton"`,
		},
		{
			name:    "bad channel name",
			doc:     "main:\n  BA:\n    - sql: x = 1\ne-mail:\n  BA:\n    - sql: y = 1\n",
			wantMsg: `invalid channel name "e-mail"`,
		},
		{
			name:    "template not a list",
			doc:     "main:\n  BA:\n    sql: x = 1\n",
			wantMsg: "main/BA must be a list of checks",
		},
		{
			name:    "broken yaml",
			doc:     "main: [",
			wantMsg: "invalid YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConditions([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, core.IsConfigError(err), "want ConfigError, got %T", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseConditions_CollectsAllIssues(t *testing.T) {
	doc := "email:\n  T1:\n    - sql: ''\n      output: true\n    - sql: b = 1\n"
	_, err := ParseConditions([]byte(doc))

	var ce *core.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Issues, 3)
}

func TestParseConditions_OutputCountedPerTemplate(t *testing.T) {
	doc := `
main:
  BA:
    - sql: x = 1
email:
  T1:
    - sql: a = 1
      output: true
  T2:
    - sql: b = 1
      output: true
`
	conds, err := ParseConditions([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, conds.Len())
}
