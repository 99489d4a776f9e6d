package adapter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/waterfall/pkg/dialect"
)

// fakeAdapter is a registrable adapter backed by BaseSQLAdapter.
type fakeAdapter struct {
	BaseSQLAdapter
	dialect string
}

func (f *fakeAdapter) Connect(ctx context.Context, cfg Config) error {
	return f.OpenAndPing(ctx, "sqlite", cfg.Path, cfg)
}

func (f *fakeAdapter) DialectName() string       { return f.dialect }
func (f *fakeAdapter) Dialect() *dialect.Dialect { return nil }

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name    string
		mock    func(sqlmock.Sqlmock)
		sql     string
		wantErr string
	}{
		{
			name: "eligibility table",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`CREATE TABLE work\.jdoe_02 AS`).WillReturnResult(sqlmock.NewResult(0, 120))
			},
			sql: "CREATE TABLE work.jdoe_02 AS SELECT a.acct_id FROM accounts AS a",
		},
		{
			name: "statistics rejected by warehouse",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`COLLECT STATISTICS`).WillReturnError(assert.AnError)
			},
			sql:     "COLLECT STATISTICS INDEX prindx ON work.jdoe_02",
			wantErr: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.mock(mock)

			base := &BaseSQLAdapter{DB: db}
			err = base.Exec(context.Background(), tt.sql)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, assert.AnError)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS starting_population`).
		WillReturnRows(sqlmock.NewRows([]string{"starting_population"}).AddRow(1000))
	mock.ExpectQuery(`SELECT no_such_column`).WillReturnError(assert.AnError)

	base := &BaseSQLAdapter{DB: db}
	ctx := context.Background()

	rows, err := base.Query(ctx, "SELECT COUNT(*) AS starting_population FROM work.jdoe_03")
	require.NoError(t, err)
	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, int64(1000), n)
	require.NoError(t, rows.Close())

	rows, err = base.Query(ctx, "SELECT no_such_column FROM work.jdoe_05")
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to execute query")
	assert.Nil(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	base := &BaseSQLAdapter{}
	ctx := context.Background()

	assert.False(t, base.IsConnected())
	require.ErrorIs(t, base.Exec(ctx, "DROP TABLE work.jdoe_02"), ErrNotConnected)
	_, err := base.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, ErrNotConnected)
	require.NoError(t, base.Close())
}

func TestBaseSQLAdapter_CloseResetsConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	base := &BaseSQLAdapter{DB: db}
	require.True(t, base.IsConnected())
	require.NoError(t, base.Close())
	assert.False(t, base.IsConnected())
	require.NoError(t, base.Close(), "second close is a no-op")
	require.ErrorIs(t, base.Exec(context.Background(), "SELECT 1"), ErrNotConnected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenAndPing(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "warehouse.db")}

	a := &fakeAdapter{dialect: "sqlite"}
	require.NoError(t, a.Connect(ctx, cfg))
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, cfg, a.Cfg)

	require.NoError(t, a.Exec(ctx, "CREATE TABLE jdoe_01 AS SELECT 1 AS acct_id"))
	rows, err := a.Query(ctx, "SELECT COUNT(*) FROM jdoe_01")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var b BaseSQLAdapter
	err = b.OpenAndPing(ctx, "no_such_driver", "", Config{Type: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open oracle connection")
	assert.False(t, b.IsConnected())
}

func TestDecodeParams(t *testing.T) {
	type params struct {
		LogMech string `mapstructure:"logmech"`
		TMode   string `mapstructure:"tmode"`
		Encrypt bool   `mapstructure:"encryptdata"`
	}

	tests := []struct {
		name    string
		input   map[string]any
		want    params
		wantErr bool
	}{
		{name: "no params", input: nil},
		{
			name:  "teradata logon settings",
			input: map[string]any{"logmech": "LDAP", "tmode": "ANSI", "encryptdata": "true"},
			want:  params{LogMech: "LDAP", TMode: "ANSI", Encrypt: true},
		},
		{
			name:    "misspelled key",
			input:   map[string]any{"logmeck": "LDAP"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got params
			err := DecodeParams(tt.input, &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to decode params")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
