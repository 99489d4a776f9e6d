package output

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/waterfall/internal/eligible"
	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/internal/testutil"
	"github.com/leapstack-labs/waterfall/internal/warehouse"
	_ "github.com/leapstack-labs/waterfall/pkg/adapters/sqlite"
	"github.com/leapstack-labs/waterfall/pkg/core"
	sqlitedialect "github.com/leapstack-labs/waterfall/pkg/dialects/sqlite"
)

func setup(t *testing.T) (*Output, *warehouse.Session) {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	s, err := warehouse.Open(ctx, core.AdapterConfig{Type: "sqlite"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	for _, stmt := range []string{
		`CREATE TABLE accounts (acct_id INTEGER, age INTEGER, email TEXT, phone TEXT, balance INTEGER)`,
		`INSERT INTO accounts VALUES
			(1, 30, 'a@x', '555', 500),
			(2, 30, 'b@x', NULL, 50),
			(3, 30, NULL, '556', 0),
			(4, 10, 'd@x', '557', 900),
			(5, 30, 'e@x', '558', -5)`,
	} {
		require.NoError(t, s.Exec(ctx, stmt))
	}

	conds, err := core.NewConditions([]core.Check{
		{Channel: "main", Template: "BA", Num: 1, Name: "main_BA_1", SQL: "a.age >= 18"},
		{Channel: "email", Template: "BA", Num: 1, Name: "email_BA_1", SQL: "a.email IS NOT NULL"},
		{Channel: "email", Template: "T1", Num: 1, Name: "email_T1_1", SQL: "a.balance > 100"},
		{Channel: "email", Template: "T2", Num: 1, Name: "email_T2_1", SQL: "a.balance > 0"},
		{Channel: "sms", Template: "BA", Num: 1, Name: "sms_BA_1", SQL: "a.phone IS NOT NULL"},
	})
	require.NoError(t, err)

	n := 0
	c, err := sqlgen.New(conds,
		&core.TableSet{Tables: []core.Table{{Name: "accounts", JoinType: "FROM", Alias: "a"}}},
		[]core.Identifier{{Key: "acct_id", Columns: []core.IdentifierColumn{{Alias: "a", Column: "acct_id"}}}},
		core.Campaign{OfferCode: "TST0001", Username: "jdoe"},
		sqlitedialect.SQLite,
		sqlgen.Options{Suffix: func() string { n++; return fmt.Sprintf("o%02d", n) }})
	require.NoError(t, err)
	require.NoError(t, eligible.New(s, c, logger).Generate(ctx))

	return New(s, c, logger), s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWrite_CSVAndDelimited(t *testing.T) {
	o, s := setup(t)
	dir := t.TempDir()
	noHeader := false

	results, err := o.Write(context.Background(), []core.OutputInstruction{
		{
			Channel:      "sms",
			SQL:          "SELECT e.acct_id, a.phone FROM {eligibility_table} e JOIN accounts a ON a.acct_id = e.acct_id ORDER BY e.acct_id;",
			FileLocation: dir,
			Format:       core.FormatDelimited,
			Delimiter:    ";",
			Header:       &noHeader,
		},
		{
			Channel:      "email",
			SQL:          "SELECT acct_id, template_id FROM {eligibility_table} ORDER BY acct_id",
			FileLocation: filepath.Join(dir, "email"),
			FileBaseName: "TST0001_email",
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "email", results[0].Channel)
	assert.Equal(t, int64(2), results[0].Rows)
	assert.Equal(t, filepath.Join(dir, "email", "TST0001_email.csv"), results[0].Path)
	assert.Equal(t, "acct_id,template_id\n1,T1\n2,T2\n", readFile(t, results[0].Path))

	assert.Equal(t, "sms", results[1].Channel)
	assert.Equal(t, filepath.Join(dir, "sms.txt"), results[1].Path)
	assert.Equal(t, "1;555\n3;556\n5;558\n", readFile(t, results[1].Path))

	// two channel tables tracked after the eligibility table
	assert.Len(t, s.Tracked(), 3)
}

func TestWrite_FailingChannelDoesNotBlockOthers(t *testing.T) {
	o, _ := setup(t)
	dir := t.TempDir()

	results, err := o.Write(context.Background(), []core.OutputInstruction{
		{Channel: "email", SQL: "SELECT no_such_column FROM {eligibility_table}", FileLocation: dir},
		{Channel: "push", SQL: "SELECT * FROM {eligibility_table}", FileLocation: dir},
		{Channel: "sms", SQL: "SELECT acct_id FROM {eligibility_table} ORDER BY acct_id", FileLocation: dir},
	})
	require.Error(t, err)
	require.Len(t, results, 3)

	var ce *core.ChannelError
	require.ErrorAs(t, results[0].Err, &ce)
	assert.Equal(t, "email", ce.Channel)
	var qe *core.QueryError
	require.ErrorAs(t, results[0].Err, &qe)
	assert.Equal(t, core.StageExtract, qe.Stage)
	assert.NoFileExists(t, filepath.Join(dir, "email.csv"))

	require.ErrorAs(t, results[1].Err, &ce)
	assert.Equal(t, "push", ce.Channel)

	require.NoError(t, results[2].Err)
	assert.Equal(t, "acct_id\n1\n3\n5\n", readFile(t, results[2].Path))

	assert.Contains(t, err.Error(), `channel "email"`)
	assert.Contains(t, err.Error(), `channel "push"`)
}

func TestWrite_JSONL(t *testing.T) {
	o, _ := setup(t)
	dir := t.TempDir()

	results, err := o.Write(context.Background(), []core.OutputInstruction{{
		Channel:      "email",
		SQL:          "SELECT acct_id, template_id FROM {eligibility_table} ORDER BY acct_id",
		FileLocation: dir,
		Format:       core.FormatJSONL,
	}})
	require.NoError(t, err)

	f, err := os.Open(results[0].Path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.Equal(t, []string{
		`{"acct_id":1,"template_id":"T1"}`,
		`{"acct_id":2,"template_id":"T2"}`,
	}, lines)
}

func TestWrite_XLSX(t *testing.T) {
	o, _ := setup(t)
	dir := t.TempDir()

	results, err := o.Write(context.Background(), []core.OutputInstruction{{
		Channel:      "sms",
		SQL:          "SELECT acct_id, template_id FROM {eligibility_table} ORDER BY acct_id",
		FileLocation: dir,
		Format:       core.FormatXLSX,
	}})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(results[0].Path, "sms.xlsx"))

	f, err := excelize.OpenFile(results[0].Path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"acct_id", "template_id"},
		{"1", "BA"},
		{"3", "BA"},
		{"5", "BA"},
	}, rows)
}

func TestNewWriter_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	_, err := NewWriter(path, core.OutputInstruction{Format: "parquet"})
	require.Error(t, err)
	_, err = NewWriter(path, core.OutputInstruction{Format: core.FormatDelimited, Delimiter: "||"})
	require.Error(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "email.csv", Path(core.OutputInstruction{Channel: "email"}))
	assert.Equal(t, filepath.Join("out", "e.txt"), Path(core.OutputInstruction{Channel: "email", FileLocation: "out", FileBaseName: "e", Format: core.FormatDelimited}))
}
